package format

import (
	"bytes"
	"strings"

	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

// emit walks the formatted excerpts in token order and produces the final
// byte stream: gaps between excerpts are renormalized (comments kept
// verbatim, blank lines capped at MaxBlankLines), except for any sub-run
// that falls inside a disabled range, which is copied byte-for-byte. When an
// excerpt's first token lies inside a disabled range, the whole gap in front
// of it is copied byte-for-byte and no indentation is added.
//
// It also returns, for every non-EOF token, the byte span that token ended
// up occupying in the output; range formatting uses this to slice out the
// replacement text for a single ancestor node without re-running the
// pipeline on a sub-tree.
func emit(tree *syntax.Tree, excerpts []formattedExcerpt, dr disabledRanges, style Style) ([]byte, []text.Span) {
	var buf bytes.Buffer
	tokenSpans := make([]text.Span, len(tree.Tokens))

	for idx, ex := range excerpts {
		firstTok := tree.Tokens[ex.FirstToken]
		suppressIndent := dr.Contains(firstTok.Span.Start)
		if suppressIndent {
			gapStart := text.ByteOffset(0)
			if ex.FirstToken > 0 {
				gapStart = tree.Tokens[ex.FirstToken-1].Span.End
			}
			buf.Write(tree.Source[gapStart:firstTok.Span.Start])
		} else {
			emitGap(&buf, tree, firstTok.Leading, dr, style, ex.IndentationSpaces, idx == 0)
		}
		emitExcerptBody(&buf, tree, ex, dr, style, suppressIndent, tokenSpans)
	}

	if eof := lastToken(tree); eof != nil {
		emitGap(&buf, tree, eof.Leading, dr, style, 0, len(excerpts) == 0)
	}
	return buf.Bytes(), tokenSpans
}

func leadingHasComment(trivia []lexer.Trivia) bool {
	for _, tr := range trivia {
		if tr.Kind.IsComment() {
			return true
		}
	}
	return false
}

func lastToken(tree *syntax.Tree) *lexer.Token {
	if len(tree.Tokens) == 0 {
		return nil
	}
	return &tree.Tokens[len(tree.Tokens)-1]
}

// emitExcerptBody writes one unwrapped line's tokens using the wrap-search
// decisions recorded for it, recording each token's output span into
// tokenSpans as it goes.
func emitExcerptBody(buf *bytes.Buffer, tree *syntax.Tree, ex formattedExcerpt, dr disabledRanges, style Style, suppressIndent bool, tokenSpans []text.Span) {
	if ex.LastToken < ex.FirstToken {
		return
	}
	if !suppressIndent {
		buf.WriteString(strings.Repeat(" ", ex.IndentationSpaces))
	}
	for i := ex.FirstToken; i <= ex.LastToken; i++ {
		if i > ex.FirstToken {
			d := ex.TokenDecisions[i-ex.FirstToken]
			tok := tree.Tokens[i]
			switch {
			case d.Kind == excerptPreserveOriginal:
				prevEnd := tree.Tokens[i-1].Span.End
				buf.Write(tree.Source[prevEnd:tok.Span.Start])
			case leadingHasComment(tok.Leading):
				// A comment attached to this token's leading trivia sits
				// between the previous token and this one; wrap-search
				// already forced a break here (see annotatePair), but the
				// comment bytes themselves still need to go through
				// emitGap or they vanish. emitGap stops after the
				// newline(s); the indentation for the token that follows
				// is this loop's job everywhere else, so it's ours here too.
				emitGap(buf, tree, tok.Leading, dr, style, d.Spaces, false)
				buf.WriteString(strings.Repeat(" ", d.Spaces))
			case d.Kind == excerptAppendSpace:
				buf.WriteString(strings.Repeat(" ", d.Spaces))
			case d.Kind == excerptWrapBreak:
				buf.WriteByte('\n')
				buf.WriteString(strings.Repeat(" ", d.Spaces))
			}
		}
		start := text.ByteOffset(buf.Len())
		buf.Write(tree.Tokens[i].Bytes(tree.Source))
		if int(i) < len(tokenSpans) {
			tokenSpans[i] = text.Span{Start: start, End: text.ByteOffset(buf.Len())}
		}
	}
}

// emitGap renders the trivia between the previous excerpt's last token and
// the next token to be emitted (trivia lives on that next token, per the
// lexer's leading-trivia convention).
func emitGap(buf *bytes.Buffer, tree *syntax.Tree, trivia []lexer.Trivia, dr disabledRanges, style Style, indentSpaces int, atFileStart bool) {
	newlineRun := 0
	wroteAnything := false
	verbatimEndsLine := false
	i := 0
	for i < len(trivia) {
		tr := trivia[i]
		if dr.Contains(tr.Span.Start) {
			if newlineRun > 0 {
				flushSeparator(buf, newlineRun, style.MaxBlankLines, atFileStart && !wroteAnything)
			}
			newlineRun = 0
			j := i
			for j < len(trivia) && dr.Contains(trivia[j].Span.Start) {
				j++
			}
			buf.Write(tree.Source[trivia[i].Span.Start:trivia[j-1].Span.End])
			wroteAnything = true
			verbatimEndsLine = trivia[j-1].Kind == lexer.TriviaNewline
			i = j
			continue
		}

		switch {
		case tr.Kind == lexer.TriviaNewline:
			newlineRun++
		case tr.Kind.IsComment():
			if newlineRun == 0 && !wroteAnything && !atFileStart {
				buf.WriteByte(' ')
			} else if newlineRun == 0 && verbatimEndsLine {
				buf.WriteString(strings.Repeat(" ", indentSpaces))
			} else {
				flushSeparator(buf, newlineRun, style.MaxBlankLines, atFileStart && !wroteAnything)
				buf.WriteString(strings.Repeat(" ", indentSpaces))
			}
			buf.Write(tr.Bytes(tree.Source))
			wroteAnything = true
			verbatimEndsLine = false
			newlineRun = 0
		}
		i++
	}

	if !atFileStart && (newlineRun > 0 || !verbatimEndsLine) {
		flushSeparator(buf, newlineRun, style.MaxBlankLines, false)
	}
}

// flushSeparator writes the newline(s) that should appear given newlineRun
// consecutive newlines were observed in the original source, capped so at
// most MaxBlankLines blank lines survive. atStart suppresses any output
// (nothing precedes the very first token of the file).
func flushSeparator(buf *bytes.Buffer, newlineRun, maxBlankLines int, atStart bool) {
	if atStart {
		return
	}
	lines := newlineRun
	if lines < 1 {
		lines = 1
	}
	blanks := lines - 1
	if blanks > maxBlankLines {
		blanks = maxBlankLines
	}
	buf.WriteString(strings.Repeat("\n", blanks+1))
}
