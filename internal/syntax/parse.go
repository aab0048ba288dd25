package syntax

import (
	"context"
	"slices"

	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/text"
)

// Parse tokenizes and parses src into a CST-oriented syntax tree.
//
// Parse never fails on malformed input: unrecognized spans are wrapped in
// error_node leaves and surfaced as recoverable diagnostics, the same way
// the lexer degrades rather than aborts on malformed bytes.
func Parse(ctx context.Context, src []byte, opts ParseOptions) (*Tree, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lexRes := lexer.Lex(src)
	sourceCopy := slices.Clone(src)

	out := &Tree{
		URI:       opts.URI,
		Version:   opts.Version,
		Source:    sourceCopy,
		Tokens:    append([]lexer.Token(nil), lexRes.Tokens...),
		Nodes:     make([]Node, 1, 16),
		LineIndex: text.NewLineIndex(sourceCopy),
	}
	out.Diagnostics = append(out.Diagnostics, mapLexerDiagnostics(lexRes.Diagnostics)...)
	out.Diagnostics = append(out.Diagnostics, validateTokenInvariants(sourceCopy, out.Tokens)...)

	p := &parser{tree: out}
	out.Root = p.parseSourceFile()
	out.Diagnostics = append(out.Diagnostics, p.diagnostics...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parser builds the CST by walking the significant (non-trivia) token stream
// produced by the lexer. It never backtracks across a construct boundary: on
// anything it cannot recognize, it resynchronizes at the next statement
// terminator or block keyword and emits an error_node for the skipped span.
type parser struct {
	tree        *Tree
	pos         int
	diagnostics []Diagnostic
}

func (p *parser) tokens() []lexer.Token { return p.tree.Tokens }

func (p *parser) cur() lexer.Token {
	toks := p.tokens()
	if p.pos >= len(toks) {
		return toks[len(toks)-1] // EOF sentinel
	}
	return toks[p.pos]
}

func (p *parser) kind() lexer.TokenKind { return p.cur().Kind }

func (p *parser) atEOF() bool { return p.kind() == lexer.TokenEOF }

func (p *parser) advance() uint32 {
	idx := uint32(p.pos)
	if p.pos < len(p.tokens())-1 {
		p.pos++
	}
	return idx
}

func (p *parser) peekIs(kinds ...lexer.TokenKind) bool {
	k := p.kind()
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// newNode allocates a node, links it to parent, and returns its ID.
func (p *parser) newNode(kind NodeKind, firstTok, lastTok uint32, parent NodeID) NodeID {
	id := NodeID(len(p.tree.Nodes))
	sp := spanForTokenRange(p.tokens(), firstTok, lastTok)
	p.tree.Nodes = append(p.tree.Nodes, Node{
		ID:         id,
		Kind:       kind,
		Span:       sp,
		FirstToken: firstTok,
		LastToken:  lastTok,
		Parent:     parent,
	})
	if parent != NoNode {
		p.addChildNode(parent, id)
	}
	return id
}

func (p *parser) addChildNode(parent, child NodeID) {
	p.tree.Nodes[parent].Children = append(p.tree.Nodes[parent].Children, ChildRef{Index: uint32(child)})
}

func (p *parser) addChildToken(parent NodeID, tok uint32) {
	p.tree.Nodes[parent].Children = append(p.tree.Nodes[parent].Children, ChildRef{IsToken: true, Index: tok})
}

// appendLeafTokens attaches every token in [first, last] directly under a
// leaf node's Children, giving downstream consumers token coverage without
// an intervening node layer.
func (p *parser) appendLeafTokens(node NodeID, first, last uint32) {
	for t := first; t <= last && int(t) < len(p.tokens()); t++ {
		if p.tokens()[t].Kind == lexer.TokenEOF {
			continue
		}
		p.addChildToken(node, t)
	}
}

func spanForTokenRange(tokens []lexer.Token, first, last uint32) text.Span {
	if len(tokens) == 0 || int(first) >= len(tokens) || int(last) >= len(tokens) {
		return text.Span{}
	}
	return text.Span{Start: tokens[first].Span.Start, End: tokens[last].Span.End}
}

func (p *parser) errorDiag(span text.Span, msg string) {
	p.diagnostics = append(p.diagnostics, Diagnostic{
		Code:        DiagnosticParserErrorNode,
		Message:     msg,
		Severity:    SeverityError,
		Span:        span,
		Source:      "parser",
		Recoverable: true,
	})
}

// parseSourceFile parses every top-level item until EOF.
func (p *parser) parseSourceFile() NodeID {
	root := p.newNode(KindSourceFile, 0, uint32(max(len(p.tokens())-1, 0)), NoNode)
	for !p.atEOF() {
		startPos := p.pos
		p.parseTopLevelItem(root)
		if p.pos == startPos {
			// Safety net: parseTopLevelItem must always consume at least one token.
			p.advance()
		}
	}
	return root
}

func (p *parser) parseTopLevelItem(parent NodeID) {
	switch p.kind() {
	case lexer.TokenKwModule, lexer.TokenKwMacromodule:
		p.parseBodyConstruct(parent, KindModuleDeclaration, lexer.TokenKwEndmodule)
	case lexer.TokenKwInterface:
		p.parseBodyConstruct(parent, KindInterfaceDeclaration, lexer.TokenKwEndinterface)
	case lexer.TokenKwProgram:
		p.parseBodyConstruct(parent, KindProgramDeclaration, lexer.TokenKwEndprogram)
	case lexer.TokenKwPackage:
		p.parseBodyConstruct(parent, KindPackageDeclaration, lexer.TokenKwEndpackage)
	case lexer.TokenKwClass:
		p.parseBodyConstruct(parent, KindClassDeclaration, lexer.TokenKwEndclass)
	case lexer.TokenPreprocessor:
		p.parsePreprocessorDirective(parent)
	default:
		p.parseUnrecognizedTopLevelSpan(parent)
	}
}

// parseBodyConstruct handles the shared shape of module/interface/program/
// package/class: keyword, optional name, optional `#(parameter list)`,
// optional `(port list)`, `;`, item list, matching end keyword.
func (p *parser) parseBodyConstruct(parent NodeID, kind NodeKind, endKw lexer.TokenKind) {
	first := p.advance() // the opening keyword

	if p.kind() == lexer.TokenIdentifier {
		p.advance()
	}

	node := p.newNode(kind, first, first, parent) // LastToken fixed up below

	if p.kind() == lexer.TokenHash {
		p.advance()
		if p.kind() == lexer.TokenLParen {
			p.parseParenList(node, KindParameterList, KindParameter)
		}
	}
	if p.kind() == lexer.TokenLParen {
		p.parseParenList(node, KindPortList, KindPort)
	}
	if p.kind() == lexer.TokenSemi {
		p.advance()
	}

	for !p.atEOF() && p.kind() != endKw {
		startPos := p.pos
		p.parseModuleItem(node)
		if p.pos == startPos {
			p.advance()
		}
	}
	last := first
	if p.kind() == endKw {
		last = p.advance()
	} else {
		last = uint32(max(p.pos-1, int(first)))
	}

	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), n.FirstToken, last)
}

// parseParenList parses a `(` ... `)` or `#(` ... `)` list, splitting top-level
// commas (respecting nested parens/brackets) into one listKind child per entry.
func (p *parser) parseParenList(parent NodeID, listKind, entryKind NodeKind) {
	open := p.advance() // '('
	listNode := p.newNode(listKind, open, open, parent)

	depth := 1
	entryStart := p.pos
	for !p.atEOF() && depth > 0 {
		switch p.kind() {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
			p.advance()
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			depth--
			if depth == 0 {
				if p.pos > entryStart {
					p.emitDelimitedEntry(listNode, entryKind, entryStart, p.pos-1)
				}
				p.advance() // closing ')'
			} else {
				p.advance()
			}
		case lexer.TokenComma:
			if depth == 1 {
				if p.pos > entryStart {
					p.emitDelimitedEntry(listNode, entryKind, entryStart, p.pos-1)
				}
				p.advance()
				entryStart = p.pos
			} else {
				p.advance()
			}
		default:
			p.advance()
		}
	}

	last := uint32(max(p.pos-1, int(open)))
	n := &p.tree.Nodes[listNode]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), n.FirstToken, last)
	if depth > 0 {
		p.errorDiag(n.Span, "unclosed parenthesized list")
	}
}

func (p *parser) emitDelimitedEntry(parent NodeID, kind NodeKind, firstPos, lastPos int) {
	first, last := uint32(firstPos), uint32(lastPos)
	entry := p.newNode(kind, first, last, parent)
	p.appendLeafTokens(entry, first, last)
}

func (p *parser) parsePreprocessorDirective(parent NodeID) {
	tok := p.advance()
	node := p.newNode(KindPreprocessorDirective, tok, tok, parent)
	p.addChildToken(node, tok)
}

func (p *parser) parseUnrecognizedTopLevelSpan(parent NodeID) {
	start := p.pos
	startTok := p.advance()
	for !p.atEOF() && !p.startsTopLevelItem() && p.kind() != lexer.TokenSemi {
		p.advance()
	}
	if p.kind() == lexer.TokenSemi {
		p.advance()
	}
	last := uint32(max(p.pos-1, start))
	node := p.newNode(KindErrorNode, startTok, last, parent)
	node = p.flagRecovered(node)
	p.appendLeafTokens(node, startTok, last)
	p.errorDiag(spanForTokenRange(p.tokens(), startTok, last), "unrecognized top-level construct")
}

func (p *parser) startsTopLevelItem() bool {
	return p.peekIs(
		lexer.TokenKwModule, lexer.TokenKwMacromodule, lexer.TokenKwInterface,
		lexer.TokenKwProgram, lexer.TokenKwPackage, lexer.TokenKwClass,
		lexer.TokenPreprocessor,
	)
}

func (p *parser) flagRecovered(id NodeID) NodeID {
	p.tree.Nodes[id].Flags |= NodeFlagError
	return id
}

// parseModuleItem parses one item inside a module/interface/program/package/
// class body, wrapping it in a module_item node per the "one leaf per item"
// AlwaysExpand policy the body applies to its direct children.
func (p *parser) parseModuleItem(parent NodeID) {
	item := p.newNode(KindModuleItem, uint32(p.pos), uint32(p.pos), parent)

	switch p.kind() {
	case lexer.TokenKwAlways, lexer.TokenKwAlwaysComb, lexer.TokenKwAlwaysFF,
		lexer.TokenKwAlwaysLatch, lexer.TokenKwInitial, lexer.TokenKwFinal:
		p.parseProceduralBlock(item)
	case lexer.TokenKwFunction:
		p.parseSubroutine(item, KindFunctionDeclaration, lexer.TokenKwEndfunction)
	case lexer.TokenKwTask:
		p.parseSubroutine(item, KindTaskDeclaration, lexer.TokenKwEndtask)
	case lexer.TokenKwAssign:
		p.parseAssignment(item)
	case lexer.TokenKwIf:
		p.parseIfStatement(item)
	case lexer.TokenKwCase, lexer.TokenKwCasex, lexer.TokenKwCasez:
		p.parseCaseStatement(item)
	case lexer.TokenKwFor, lexer.TokenKwWhile, lexer.TokenKwDo, lexer.TokenKwRepeat, lexer.TokenKwForever:
		p.parseLoopStatement(item)
	case lexer.TokenKwBegin:
		p.parseBlock(item)
	case lexer.TokenPreprocessor:
		p.parsePreprocessorDirective(item)
	default:
		p.parseSimpleStatement(item)
	}

	first, last := uint32(0), uint32(0)
	if node := p.tree.NodeByID(item); node != nil && len(node.Children) > 0 {
		first, last = p.childTokenBounds(item)
	}
	n := &p.tree.Nodes[item]
	n.FirstToken, n.LastToken = first, last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// childTokenBounds computes the min/max token index reachable under id,
// used to backfill a wrapper node's own FirstToken/LastToken after its
// single child construct has been parsed.
func (p *parser) childTokenBounds(id NodeID) (uint32, uint32) {
	n := p.tree.Nodes[id]
	if len(n.Children) == 0 {
		return 0, 0
	}
	first := ^uint32(0)
	last := uint32(0)
	for _, c := range n.Children {
		var lo, hi uint32
		if c.IsToken {
			lo, hi = c.Index, c.Index
		} else {
			child := p.tree.Nodes[c.Index]
			lo, hi = child.FirstToken, child.LastToken
		}
		if lo < first {
			first = lo
		}
		if hi > last {
			last = hi
		}
	}
	return first, last
}

// parseProceduralBlock parses `always*|initial|final <statement-or-block>`.
func (p *parser) parseProceduralBlock(parent NodeID) {
	first := p.advance()
	node := p.newNode(KindProceduralBlock, first, first, parent)
	if p.kind() == lexer.TokenAt {
		p.skipSensitivityOrEventControl()
	}
	p.parseStatementInto(node)
	_, last := p.childTokenBounds(node)
	lastSeen := p.lastTokenConsumedSoFar(first)
	if lastSeen > last {
		last = lastSeen
	}
	n := &p.tree.Nodes[node]
	n.FirstToken, n.LastToken = first, last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// skipSensitivityOrEventControl consumes an `@(...)`, `@*`, or `@identifier`
// event-control prefix without modeling its internals.
func (p *parser) skipSensitivityOrEventControl() {
	p.advance() // '@'
	if p.kind() == lexer.TokenLParen {
		p.skipParenGroup()
		return
	}
	if p.kind() == lexer.TokenStar || p.kind() == lexer.TokenIdentifier {
		p.advance()
	}
}

// parseStatementInto dispatches a single statement (block, control
// construct, or simple statement) as a direct child of parent, without
// introducing its own module_item wrapper.
func (p *parser) parseStatementInto(parent NodeID) {
	switch p.kind() {
	case lexer.TokenKwBegin:
		p.parseBlock(parent)
	case lexer.TokenKwIf:
		p.parseIfStatement(parent)
	case lexer.TokenKwCase, lexer.TokenKwCasex, lexer.TokenKwCasez:
		p.parseCaseStatement(parent)
	case lexer.TokenKwFor, lexer.TokenKwWhile, lexer.TokenKwDo, lexer.TokenKwRepeat, lexer.TokenKwForever:
		p.parseLoopStatement(parent)
	default:
		p.parseSimpleStatement(parent)
	}
}

// parseBlock parses a `begin [: label] ... end` block, whose children are
// AlwaysExpand statement items (one per line, mirroring a module body).
func (p *parser) parseBlock(parent NodeID) {
	first := p.advance() // 'begin'
	node := p.newNode(KindBlock, first, first, parent)
	if p.kind() == lexer.TokenColon {
		p.advance()
		if p.kind() == lexer.TokenIdentifier {
			p.advance()
		}
	}
	for !p.atEOF() && p.kind() != lexer.TokenKwEnd {
		startPos := p.pos
		p.parseBlockItem(node)
		if p.pos == startPos {
			p.advance()
		}
	}
	last := first
	if p.kind() == lexer.TokenKwEnd {
		last = p.advance()
	} else {
		last = uint32(max(p.pos-1, int(first)))
	}
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// parseBlockItem wraps one statement inside a begin/end block in a
// module_item, matching the module body's AlwaysExpand "one leaf per item".
func (p *parser) parseBlockItem(parent NodeID) {
	p.parseModuleItem(parent)
}

// parseIfStatement parses `if (cond) <stmt> [else <stmt>]` as AlwaysExpand
// over its header and branch bodies.
func (p *parser) parseIfStatement(parent NodeID) {
	first := p.advance() // 'if'
	node := p.newNode(KindIfStatement, first, first, parent)
	if p.kind() == lexer.TokenLParen {
		p.skipParenGroup()
	}
	p.parseStatementInto(node)

	last := p.lastTokenConsumedSoFar(first)
	if p.kind() == lexer.TokenKwElse {
		elseFirst := p.advance()
		elseNode := p.newNode(KindElseClause, elseFirst, elseFirst, node)
		p.parseStatementInto(elseNode)
		_, el := p.childTokenBounds(elseNode)
		elLast := p.lastTokenConsumedSoFar(elseFirst)
		if elLast > el {
			el = elLast
		}
		en := &p.tree.Nodes[elseNode]
		en.FirstToken, en.LastToken = elseFirst, el
		en.Span = spanForTokenRange(p.tokens(), elseFirst, el)
		last = el
	}
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

func (p *parser) lastTokenConsumedSoFar(fallback uint32) uint32 {
	if p.pos == 0 {
		return fallback
	}
	return uint32(p.pos - 1)
}

// skipParenGroup consumes a balanced `( ... )` group without modeling it.
func (p *parser) skipParenGroup() {
	if p.kind() != lexer.TokenLParen {
		return
	}
	depth := 0
	for !p.atEOF() {
		switch p.kind() {
		case lexer.TokenLParen:
			depth++
		case lexer.TokenRParen:
			depth--
			p.advance()
			if depth == 0 {
				return
			}
			continue
		}
		p.advance()
	}
}

// parseCaseStatement parses `case(x) item: stmt; ... endcase`, one
// AlwaysExpand case_item per branch, each indented one level deeper.
func (p *parser) parseCaseStatement(parent NodeID) {
	first := p.advance() // 'case' | 'casex' | 'casez'
	node := p.newNode(KindCaseStatement, first, first, parent)
	if p.kind() == lexer.TokenLParen {
		p.skipParenGroup()
	}
	for !p.atEOF() && p.kind() != lexer.TokenKwEndcase {
		startPos := p.pos
		p.parseCaseItem(node)
		if p.pos == startPos {
			p.advance()
		}
	}
	last := first
	if p.kind() == lexer.TokenKwEndcase {
		last = p.advance()
	} else {
		last = uint32(max(p.pos-1, int(first)))
	}
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// parseCaseItem parses one `label[, label]* : statement` branch, or the
// `default : statement` branch.
func (p *parser) parseCaseItem(parent NodeID) {
	first := uint32(p.pos)
	item := p.newNode(KindCaseItem, first, first, parent)

	depth := 0
	for !p.atEOF() {
		switch p.kind() {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			depth--
		case lexer.TokenColon:
			if depth == 0 {
				p.advance() // consume ':'
				goto labeled
			}
		}
		p.advance()
	}
labeled:
	p.parseStatementInto(item)

	_, l := p.childTokenBounds(item)
	lastSeen := p.lastTokenConsumedSoFar(first)
	if lastSeen > l {
		l = lastSeen
	}
	n := &p.tree.Nodes[item]
	n.FirstToken, n.LastToken = first, l
	n.Span = spanForTokenRange(p.tokens(), first, l)
}

// parseLoopStatement parses for/while/do-while/repeat/forever, keeping the
// header's control expression unexpanded and recursing into the loop body.
func (p *parser) parseLoopStatement(parent NodeID) {
	first := p.advance()
	node := p.newNode(KindLoopStatement, first, first, parent)

	switch p.tokens()[first].Kind {
	case lexer.TokenKwFor, lexer.TokenKwRepeat, lexer.TokenKwWhile:
		if p.kind() == lexer.TokenLParen {
			p.skipParenGroup()
		}
		p.parseStatementInto(node)
	case lexer.TokenKwDo:
		p.parseStatementInto(node)
		if p.kind() == lexer.TokenKwWhile {
			p.advance()
			if p.kind() == lexer.TokenLParen {
				p.skipParenGroup()
			}
			if p.kind() == lexer.TokenSemi {
				p.advance()
			}
		}
	case lexer.TokenKwForever:
		p.parseStatementInto(node)
	}

	_, last := p.childTokenBounds(node)
	lastSeen := p.lastTokenConsumedSoFar(first)
	if lastSeen > last {
		last = lastSeen
	}
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// parseSubroutine parses function/task declarations: keyword, optional
// lifetime/return-type tokens, name, optional port list, body items,
// matching end keyword.
func (p *parser) parseSubroutine(parent NodeID, kind NodeKind, endKw lexer.TokenKind) {
	first := p.advance()
	node := p.newNode(kind, first, first, parent)

	for !p.atEOF() && p.kind() != lexer.TokenLParen && p.kind() != lexer.TokenSemi && p.kind() != endKw {
		p.advance()
	}
	if p.kind() == lexer.TokenLParen {
		p.parseParenList(node, KindPortList, KindPort)
	}
	if p.kind() == lexer.TokenSemi {
		p.advance()
	}

	for !p.atEOF() && p.kind() != endKw {
		startPos := p.pos
		p.parseModuleItem(node)
		if p.pos == startPos {
			p.advance()
		}
	}
	last := first
	if p.kind() == endKw {
		last = p.advance()
	} else {
		last = uint32(max(p.pos-1, int(first)))
	}
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// parseAssignment parses `assign lhs = rhs;`.
func (p *parser) parseAssignment(parent NodeID) {
	first := p.advance() // 'assign'
	p.parseTerminatedStatement(parent, KindAssignment, first)
}

// parseSimpleStatement parses a declaration, plain assignment, or bare call
// statement up to its terminating semicolon, detecting an embedded call
// expression (identifier or system-identifier immediately followed by a
// parenthesized argument list) so it can be exposed with the shape the
// call-with-arguments policy expects.
func (p *parser) parseSimpleStatement(parent NodeID) {
	first := uint32(p.pos)
	if (p.kind() == lexer.TokenIdentifier || p.kind() == lexer.TokenSystemIdentifier) &&
		p.peekAt(1) == lexer.TokenLParen {
		p.parseCallStatement(parent, first)
		return
	}
	p.parseTerminatedStatement(parent, KindDeclaration, first)
}

func (p *parser) peekAt(n int) lexer.TokenKind {
	idx := p.pos + n
	toks := p.tokens()
	if idx >= len(toks) {
		return lexer.TokenEOF
	}
	return toks[idx].Kind
}

// parseCallStatement parses `callee(arg, arg, ...);`, with callee and each
// argument exposed as the call_expression's argument_list children.
func (p *parser) parseCallStatement(parent NodeID, first uint32) {
	call := p.newNode(KindCallExpression, first, first, parent)
	calleeTok := p.advance()
	p.addChildToken(call, calleeTok)

	p.parseParenList(call, KindArgumentList, KindArgument)
	last := p.lastTokenConsumedSoFar(first)

	if p.kind() == lexer.TokenSemi {
		last = p.advance()
	} else {
		p.skipToStatementEnd()
		last = p.lastTokenConsumedSoFar(last)
	}
	n := &p.tree.Nodes[call]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// parseTerminatedStatement consumes tokens up to (and including) the next
// top-level semicolon and wraps them as a single leaf node of kind.
func (p *parser) parseTerminatedStatement(parent NodeID, kind NodeKind, first uint32) {
	node := p.newNode(kind, first, first, parent)
	depth := 0
loop:
	for !p.atEOF() {
		switch p.kind() {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			depth--
		case lexer.TokenSemi:
			if depth <= 0 {
				p.advance()
				break loop
			}
		case lexer.TokenKwEnd, lexer.TokenKwEndmodule, lexer.TokenKwEndfunction, lexer.TokenKwEndtask,
			lexer.TokenKwEndcase, lexer.TokenKwEndinterface, lexer.TokenKwEndprogram,
			lexer.TokenKwEndpackage, lexer.TokenKwEndclass:
			if depth <= 0 {
				break loop
			}
		}
		p.advance()
	}
	last := p.lastTokenConsumedSoFar(first)
	p.appendLeafTokens(node, first, last)
	n := &p.tree.Nodes[node]
	n.LastToken = last
	n.Span = spanForTokenRange(p.tokens(), first, last)
}

// skipToStatementEnd resynchronizes at the next top-level semicolon or block
// terminator, used when a call statement is missing its semicolon.
func (p *parser) skipToStatementEnd() {
	depth := 0
	for !p.atEOF() {
		switch p.kind() {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			depth--
		case lexer.TokenSemi:
			if depth <= 0 {
				p.advance()
				return
			}
		case lexer.TokenKwEnd, lexer.TokenKwEndmodule, lexer.TokenKwEndfunction, lexer.TokenKwEndtask,
			lexer.TokenKwEndcase, lexer.TokenKwEndinterface, lexer.TokenKwEndprogram,
			lexer.TokenKwEndpackage, lexer.TokenKwEndclass:
			if depth <= 0 {
				return
			}
		}
		p.advance()
	}
}

func mapLexerDiagnostics(in []lexer.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(in))
	for _, d := range in {
		out = append(out, Diagnostic{
			Code:        DiagnosticCode(d.Code),
			Message:     d.Message,
			Severity:    SeverityError,
			Span:        d.Span,
			Source:      "lexer",
			Recoverable: true,
		})
	}
	return out
}

func validateTokenInvariants(src []byte, tokens []lexer.Token) []Diagnostic {
	if len(tokens) == 0 {
		return []Diagnostic{internalAlignmentDiag(text.Span{Start: 0, End: 0}, "lexer returned no tokens")}
	}

	var diags []Diagnostic
	prevStart := text.ByteOffset(0)
	prevEnd := text.ByteOffset(0)
	for i, tok := range tokens {
		if !tok.Span.IsValid() || tok.Span.End > text.ByteOffset(len(src)) {
			diags = append(diags, internalAlignmentDiag(tok.Span, "invalid token span"))
			continue
		}
		if i > 0 && tok.Span.Start < prevStart {
			diags = append(diags, internalAlignmentDiag(tok.Span, "token starts out of order"))
		}
		if i > 0 && tok.Span.Start < prevEnd {
			diags = append(diags, internalAlignmentDiag(tok.Span, "overlapping token span"))
		}
		prevStart, prevEnd = tok.Span.Start, tok.Span.End
	}
	last := tokens[len(tokens)-1]
	if last.Kind != lexer.TokenEOF {
		diags = append(diags, internalAlignmentDiag(last.Span, "last token is not EOF"))
	}
	eof := text.ByteOffset(len(src))
	if last.Span.Start != eof || last.Span.End != eof {
		diags = append(diags, internalAlignmentDiag(last.Span, "EOF token span does not match source length"))
	}
	return diags
}

func internalAlignmentDiag(span text.Span, msg string) Diagnostic {
	return Diagnostic{
		Code:        DiagnosticInternalAlignment,
		Message:     msg,
		Severity:    SeverityError,
		Span:        span,
		Source:      "parser",
		Recoverable: false,
	}
}
