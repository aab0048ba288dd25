package format

import (
	"sort"

	"github.com/antmicro/verible/internal/syntax"
)

// excerptDecisionKind classifies how a token's leading whitespace was
// resolved by the wrap-search for one unwrapped line.
type excerptDecisionKind uint8

const (
	// excerptLineStart marks the first token of the excerpt: printed after
	// the line's indentation prefix, never preceded by a break.
	excerptLineStart excerptDecisionKind = iota
	// excerptAppendSpace prints Spaces spaces before the token, same line.
	excerptAppendSpace
	// excerptWrapBreak prints a newline then Spaces spaces before the token.
	excerptWrapBreak
	// excerptPreserveOriginal copies the token's original leading whitespace
	// bytes verbatim; the emitter reads them straight from source.
	excerptPreserveOriginal
)

type excerptDecision struct {
	Kind   excerptDecisionKind
	Spaces int
}

// formattedExcerpt is the wrap-search output for one unwrapped line.
type formattedExcerpt struct {
	FirstToken          uint32
	LastToken           uint32
	IndentationSpaces   int
	TokenDecisions      []excerptDecision
	CompletedFormatting bool
	// TiedOptimalCount is how many final states shared the winning cost;
	// 1 means the chosen wrapping was uniquely optimal.
	TiedOptimalCount int
}

type searchState struct {
	col   int
	cost  int
	wraps int
	prev  *searchState
	kind  excerptDecisionKind
}

// wrapSearchLine runs the per-line layout search: a DAG of (token index,
// column) states scored by break penalties and an
// over-column-limit penalty, pruned by dominance and bounded by
// maxSearchStates. On budget exhaustion it falls back to greedily appending
// the remaining tokens and reports CompletedFormatting = false.
func wrapSearchLine(tree *syntax.Tree, fts []formatToken, style Style, maxSearchStates int, node *partitionNode) formattedExcerpt {
	first, last := node.FirstToken, node.LastToken
	excerpt := formattedExcerpt{
		FirstToken:          first,
		LastToken:           last,
		IndentationSpaces:   node.IndentationSpaces,
		CompletedFormatting: true,
	}
	if last < first {
		return excerpt
	}

	startCol := node.IndentationSpaces + tokenWidth(tree, first)
	start := &searchState{col: startCol, cost: overLimitCost(startCol, style), kind: excerptLineStart}
	layer := map[int]*searchState{startCol: start}

	budget := 1
	completed := true
	lastProcessed := first

	for i := first + 1; i <= last; i++ {
		ft := fts[i]
		next := map[int]*searchState{}
		if budget >= maxSearchStates {
			completed = false
			break
		}
		for _, s := range layer {
			if budget >= maxSearchStates {
				break
			}
			if ft.Break == breakUndecided || ft.Break == breakMustAppend {
				col2 := s.col + ft.SpacesRequired + tokenWidth(tree, i)
				cost2 := s.cost + overLimitCost(col2, style)
				considerState(next, col2, cost2, s.wraps, s, excerptAppendSpace)
				budget++
			}
			if ft.Break == breakUndecided || ft.Break == breakMustWrap {
				col2 := node.IndentationSpaces + style.WrapSpaces + tokenWidth(tree, i)
				cost2 := s.cost + ft.Penalty + overLimitCost(col2, style)
				considerState(next, col2, cost2, s.wraps+1, s, excerptWrapBreak)
				budget++
			}
			if ft.Break == breakPreserveOriginal {
				col2 := originalColumn(tree, i) + tokenWidth(tree, i)
				considerState(next, col2, s.cost, s.wraps, s, excerptPreserveOriginal)
				budget++
			}
		}
		if len(next) == 0 {
			completed = false
			break
		}
		layer = pruneDominated(next)
		lastProcessed = i
	}

	best := pickBest(layer)
	decisions := make([]excerptDecision, last-first+1)
	decisions[0] = excerptDecision{Kind: excerptLineStart}
	cur := best
	for i := lastProcessed; i > first && cur != nil; i-- {
		decisions[i-first] = excerptDecision{Kind: cur.kind, Spaces: decisionSpaces(cur.kind, fts[i], node, style)}
		cur = cur.prev
	}
	// Tokens past the last fully-searched layer (budget exhaustion mid-line)
	// are placed greedily so every token still gets a decision.
	for i := lastProcessed + 1; i <= last; i++ {
		decisions[i-first] = excerptDecision{Kind: excerptAppendSpace, Spaces: fts[i].SpacesRequired}
	}

	excerpt.TokenDecisions = decisions
	excerpt.CompletedFormatting = completed
	excerpt.TiedOptimalCount = countTies(layer, best)
	return excerpt
}

func countTies(layer map[int]*searchState, best *searchState) int {
	if best == nil {
		return 0
	}
	n := 0
	for _, s := range layer {
		if s.cost == best.cost {
			n++
		}
	}
	return n
}

func decisionSpaces(kind excerptDecisionKind, ft formatToken, node *partitionNode, style Style) int {
	switch kind {
	case excerptAppendSpace:
		return ft.SpacesRequired
	case excerptWrapBreak:
		return node.IndentationSpaces + style.WrapSpaces
	default:
		return 0
	}
}

func overLimitCost(col int, style Style) int {
	if col <= style.ColumnLimit {
		return 0
	}
	return style.OverColumnLimitPenalty * (col - style.ColumnLimit)
}

func originalColumn(tree *syntax.Tree, i uint32) int {
	if tree.LineIndex == nil || int(i) >= len(tree.Tokens) {
		return 0
	}
	pt, err := tree.LineIndex.OffsetToPoint(tree.Tokens[i].Span.Start)
	if err != nil {
		return 0
	}
	return pt.Column
}

func considerState(layer map[int]*searchState, col, cost, wraps int, prev *searchState, kind excerptDecisionKind) {
	s := &searchState{col: col, cost: cost, wraps: wraps, prev: prev, kind: kind}
	if existing, ok := layer[col]; ok {
		if betterState(s, existing) {
			layer[col] = s
		}
		return
	}
	layer[col] = s
}

// betterState breaks ties deterministically: lower cost, then fewer wraps,
// then the lexicographically-earliest (smallest) column.
func betterState(a, b *searchState) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.wraps != b.wraps {
		return a.wraps < b.wraps
	}
	return a.col < b.col
}

// pruneDominated removes states whose (col, cost) is dominated by another
// state in the same layer (same-or-lower column, same-or-lower cost).
func pruneDominated(layer map[int]*searchState) map[int]*searchState {
	cols := make([]int, 0, len(layer))
	for c := range layer {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	out := make(map[int]*searchState, len(layer))
	bestCostSoFar := -1
	for _, c := range cols {
		s := layer[c]
		if bestCostSoFar != -1 && s.cost >= bestCostSoFar {
			continue
		}
		out[c] = s
		bestCostSoFar = s.cost
	}
	return out
}

func pickBest(layer map[int]*searchState) *searchState {
	var best *searchState
	for _, s := range layer {
		if best == nil || betterState(s, best) {
			best = s
		}
	}
	return best
}
