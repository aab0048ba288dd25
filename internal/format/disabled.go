package format

import (
	"sort"
	"strings"

	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

const (
	offDirective = "verilog_format: off"
	onDirective  = "verilog_format: on"
)

// disabledRanges is a sorted, non-overlapping set of half-open byte
// intervals the emitter must copy verbatim from the original source.
type disabledRanges struct {
	spans []text.Span
}

// Contains reports whether off falls inside any disabled interval.
func (d disabledRanges) Contains(off text.ByteOffset) bool {
	i := sort.Search(len(d.spans), func(i int) bool { return d.spans[i].End > off })
	return i < len(d.spans) && d.spans[i].Contains(off)
}

// resolveDisabledRanges unions the three disabled-range sources named by the
// spec: verilog_format off/on comment pairs, style-gated syntactic regions,
// and the complement of the caller's enabled line ranges.
func resolveDisabledRanges(tree *syntax.Tree, style Style, enabledLines []LineRange) disabledRanges {
	var spans []text.Span

	spans = append(spans, directiveSpans(tree)...)
	if !style.FormatModulePortDeclarations {
		spans = append(spans, portListSpans(tree)...)
	}
	spans = append(spans, enabledLineComplementSpans(tree, enabledLines)...)

	return disabledRanges{spans: mergeSpans(spans)}
}

// directiveSpans finds `// verilog_format: off` ... `on` comment pairs.
// An "off" with no matching "on" extends to end of file.
func directiveSpans(tree *syntax.Tree) []text.Span {
	trivia := flattenLeadingTrivia(tree.Tokens)
	srcLen := text.ByteOffset(len(tree.Source))

	var spans []text.Span
	open := false
	var openStart text.ByteOffset

	for i, tr := range trivia {
		if !tr.Kind.IsComment() {
			continue
		}
		body := string(tr.Bytes(tree.Source))
		switch {
		case !open && strings.Contains(body, offDirective):
			open = true
			openStart = startAfterDirectiveLine(trivia, i, tr, srcLen)
		case open && strings.Contains(body, onDirective):
			spans = append(spans, text.Span{Start: openStart, End: tr.Span.Start})
			open = false
		}
	}
	if open {
		spans = append(spans, text.Span{Start: openStart, End: srcLen})
	}
	return spans
}

// startAfterDirectiveLine returns the offset just past the newline that ends
// the off-directive's own line, so the directive comment's line itself stays
// subject to normal formatting and only what follows is preserved verbatim.
func startAfterDirectiveLine(trivia []lexer.Trivia, i int, self lexer.Trivia, srcLen text.ByteOffset) text.ByteOffset {
	for j := i + 1; j < len(trivia); j++ {
		if trivia[j].Kind == lexer.TriviaNewline {
			return trivia[j].Span.End
		}
	}
	if self.Span.End <= srcLen {
		return self.Span.End
	}
	return srcLen
}

func flattenLeadingTrivia(toks []lexer.Token) []lexer.Trivia {
	var out []lexer.Trivia
	for _, t := range toks {
		out = append(out, t.Leading...)
	}
	return out
}

func portListSpans(tree *syntax.Tree) []text.Span {
	var spans []text.Span
	for i := range tree.Nodes {
		if i == 0 {
			continue
		}
		n := &tree.Nodes[i]
		if n.Kind != syntax.KindPortList {
			continue
		}
		spans = append(spans, text.Span{
			Start: tree.Tokens[n.FirstToken].Span.Start,
			End:   tree.Tokens[n.LastToken].Span.End,
		})
	}
	return spans
}

func enabledLineComplementSpans(tree *syntax.Tree, enabledLines []LineRange) []text.Span {
	if len(enabledLines) == 0 || tree.LineIndex == nil {
		return nil
	}
	lineCount := tree.LineIndex.LineCount()
	srcLen := tree.LineIndex.SourceLen()

	var spans []text.Span
	var runStart text.ByteOffset
	inRun := false
	for line := 1; line <= lineCount; line++ {
		start, err := tree.LineIndex.PointToOffset(text.Point{Line: line - 1, Column: 0})
		if err != nil {
			continue
		}
		disabled := !lineInEnabledRanges(enabledLines, line)
		switch {
		case disabled && !inRun:
			inRun = true
			runStart = start
		case !disabled && inRun:
			spans = append(spans, text.Span{Start: runStart, End: start})
			inRun = false
		}
	}
	if inRun {
		spans = append(spans, text.Span{Start: runStart, End: srcLen})
	}
	return spans
}

func mergeSpans(spans []text.Span) []text.Span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	out := []text.Span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// applyDisabledRanges marks every format-token whose underlying source token
// starts inside a disabled range as preserve-original, recording the byte
// offset the emitter must resume copying from. Preserve wins over every
// other break decision the annotator assigned.
func applyDisabledRanges(tree *syntax.Tree, fts []formatToken, dr disabledRanges) {
	for i, tok := range tree.Tokens {
		if i >= len(fts) {
			break
		}
		if !dr.Contains(tok.Span.Start) {
			continue
		}
		var preservedStart text.ByteOffset
		if i > 0 {
			preservedStart = tree.Tokens[i-1].Span.End
		}
		fts[i].Break = breakPreserveOriginal
		fts[i].HasPreservedSpaceStart = true
		fts[i].PreservedSpaceStart = int(preservedStart)
	}
}
