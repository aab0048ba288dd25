package format

import (
	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/syntax"
)

// breakDecision classifies how the wrap-search may treat the whitespace
// immediately before a token.
type breakDecision uint8

const (
	// breakUndecided lets wrap-search choose append or wrap, whichever is cheaper.
	breakUndecided breakDecision = iota
	// breakMustAppend forbids a line break before this token.
	breakMustAppend
	// breakMustWrap forces a line break before this token.
	breakMustWrap
	// breakPreserveOriginal keeps the token's original leading whitespace verbatim.
	breakPreserveOriginal
)

// Break penalty bands, per the annotator's soft/medium/atomic split costs.
const (
	penaltySoftSplit   = 1   // after a comma
	penaltyMediumSplit = 30  // inside a binary expression
	penaltyAtomicSplit = 1000 // inside a hierarchical name or slice, effectively forbidden
)

// formatToken pairs a lexed token with the mutable spacing/break decision
// the annotator assigns to the whitespace immediately before it. Indexes are
// aligned 1:1 with tree.Tokens.
type formatToken struct {
	SpacesRequired int
	Break          breakDecision
	Penalty        int

	HasPreservedSpaceStart bool
	PreservedSpaceStart    int // byte offset, meaningful iff HasPreservedSpaceStart
}

// annotate computes the default spacing and break decisions for every token
// in tree, before the disabled-range resolver overrides any of them.
func annotate(tree *syntax.Tree, style Style) []formatToken {
	toks := tree.Tokens
	out := make([]formatToken, len(toks))
	if len(toks) == 0 {
		return out
	}

	for i := range toks {
		if i == 0 {
			// The first token of the file is always appended at the line's
			// starting column; wrap-search never considers a leading break.
			out[i] = formatToken{Break: breakMustAppend}
			continue
		}
		prev := toks[i-1]
		cur := toks[i]
		out[i] = annotatePair(prev, cur)
	}
	return out
}

func annotatePair(prev, cur lexer.Token) formatToken {
	if hasStandaloneLeadingComment(cur) {
		// A standalone (own-line) comment before cur forces a wrap so the
		// comment keeps its own line in the formatted output.
		return formatToken{Break: breakMustWrap, Penalty: penaltySoftSplit}
	}
	if hasTrailingLineComment(cur) {
		// A line comment in cur's leading trivia, before any newline, sat on
		// the same source line as prev (the lexer attaches trivia to the
		// token that follows it) and must force a wrap after it so the
		// comment keeps the rest of the line to itself.
		return formatToken{Break: breakMustWrap, Penalty: penaltySoftSplit}
	}
	if hasAnyComment(cur) {
		// A block comment sitting inline between prev and cur, on the same
		// source line, with no newline on either side: neither of the two
		// checks above catches it, but the emitter still needs a break here
		// to place it unambiguously rather than guess where it belongs
		// relative to cur's own spacing.
		return formatToken{Break: breakMustWrap, Penalty: penaltySoftSplit}
	}

	if cur.Kind == lexer.TokenPreprocessor {
		return formatToken{Break: breakMustWrap, Penalty: penaltySoftSplit}
	}

	switch prev.Kind {
	case lexer.TokenComma:
		return formatToken{SpacesRequired: 1, Break: breakUndecided, Penalty: penaltySoftSplit}
	case lexer.TokenSemi:
		if cur.Kind == lexer.TokenKwEnd || isEndKeyword(cur.Kind) {
			return formatToken{SpacesRequired: 1, Break: breakUndecided, Penalty: penaltySoftSplit}
		}
		return formatToken{Break: breakMustWrap, Penalty: penaltySoftSplit}
	case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace, lexer.TokenHash, lexer.TokenAt:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	case lexer.TokenDot, lexer.TokenColonColon:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	}

	switch cur.Kind {
	case lexer.TokenComma:
		return formatToken{SpacesRequired: 0, Break: breakMustAppend}
	case lexer.TokenSemi:
		return formatToken{SpacesRequired: 0, Break: breakMustAppend}
	case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	case lexer.TokenLParen, lexer.TokenLBracket:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	case lexer.TokenDot, lexer.TokenColonColon:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	case lexer.TokenPlusColon, lexer.TokenMinusColon:
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyAtomicSplit}
	}

	if isUnaryContext(prev.Kind, cur.Kind) {
		return formatToken{SpacesRequired: 0, Break: breakUndecided, Penalty: penaltyMediumSplit}
	}

	return formatToken{SpacesRequired: 1, Break: breakUndecided, Penalty: penaltyMediumSplit}
}

func hasTrailingLineComment(tok lexer.Token) bool {
	for _, tr := range tok.Leading {
		if tr.Kind == lexer.TriviaLineComment {
			return true
		}
		if tr.Kind == lexer.TriviaNewline {
			return false
		}
	}
	return false
}

func hasAnyComment(tok lexer.Token) bool {
	for _, tr := range tok.Leading {
		if tr.Kind.IsComment() {
			return true
		}
	}
	return false
}

func hasStandaloneLeadingComment(tok lexer.Token) bool {
	sawNewline := false
	for _, tr := range tok.Leading {
		if tr.Kind.IsComment() && sawNewline {
			return true
		}
		if tr.Kind == lexer.TriviaNewline {
			sawNewline = true
		}
	}
	return false
}

func isEndKeyword(k lexer.TokenKind) bool {
	switch k {
	case lexer.TokenKwEnd, lexer.TokenKwEndmodule, lexer.TokenKwEndinterface,
		lexer.TokenKwEndprogram, lexer.TokenKwEndpackage, lexer.TokenKwEndclass,
		lexer.TokenKwEndfunction, lexer.TokenKwEndtask, lexer.TokenKwEndcase:
		return true
	default:
		return false
	}
}

// isUnaryContext approximates unary-operator detection: a sign or bitwise
// operator immediately following an opener, separator, or another operator
// is treated as unary and binds tight to its operand.
func isUnaryContext(prev, cur lexer.TokenKind) bool {
	switch cur {
	case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenBang, lexer.TokenTilde,
		lexer.TokenAmp, lexer.TokenPipe, lexer.TokenCaret:
		switch prev {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace,
			lexer.TokenComma, lexer.TokenEqual, lexer.TokenEqEq,
			lexer.TokenKwIf, lexer.TokenKwCase, lexer.TokenKwReturn:
			return true
		}
	}
	return false
}
