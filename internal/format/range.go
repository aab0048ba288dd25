package format

import (
	"errors"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

const (
	// DiagnosticFormatterRangeNoSafeAncestor reports that range widening found no format-safe ancestor.
	DiagnosticFormatterRangeNoSafeAncestor syntax.DiagnosticCode = "FMT_RANGE_NO_SAFE_ANCESTOR"
	// DiagnosticFormatterRangeUnboundedNode reports token/span coverage mismatch for the widened ancestor.
	DiagnosticFormatterRangeUnboundedNode syntax.DiagnosticCode = "FMT_RANGE_UNBOUNDED_ANCESTOR"
)

// findRangeFormatAncestor widens a requested range to the smallest
// format-safe ancestor node that fully contains it: module/interface/class
// bodies, procedural blocks, statements and declarations, but not a bare
// port or argument (formatting those in isolation could change their
// neighbors' layout decisions).
func findRangeFormatAncestor(tree *syntax.Tree, r text.Span) (syntax.NodeID, syntax.Diagnostic, error) {
	if tree == nil {
		return syntax.NoNode, syntax.Diagnostic{}, errors.New("nil syntax tree")
	}

	best := syntax.NoNode
	bestLen := text.ByteOffset(-1)
	for i := 1; i < len(tree.Nodes); i++ {
		id := syntax.NodeID(i)
		n := tree.NodeByID(id)
		if n == nil || !isFormatSafeAncestorKind(n.Kind) {
			continue
		}
		if !nodeContainsRange(n, r) {
			continue
		}
		if best == syntax.NoNode || n.Span.Len() < bestLen {
			best = id
			bestLen = n.Span.Len()
		}
	}

	if best == syntax.NoNode {
		return rangeBlockingFailure(
			DiagnosticFormatterRangeNoSafeAncestor,
			r,
			"selected range cannot be widened to a format-safe ancestor",
			"selected range cannot be widened to a format-safe ancestor",
		)
	}

	n := tree.NodeByID(best)
	if !hasBoundedTokenCoverage(tree, n) {
		span := r
		if n != nil {
			span = n.Span
		}
		return rangeBlockingFailure(
			DiagnosticFormatterRangeUnboundedNode,
			span,
			"range formatting ancestor does not have fully bounded token coverage",
			"range formatting requires a format-safe ancestor with fully bounded token coverage",
		)
	}

	return best, syntax.Diagnostic{}, nil
}

func hasBoundedTokenCoverage(tree *syntax.Tree, n *syntax.Node) bool {
	if tree == nil || n == nil {
		return false
	}
	if !n.Span.IsValid() {
		return false
	}
	if int(n.FirstToken) >= len(tree.Tokens) || int(n.LastToken) >= len(tree.Tokens) || n.LastToken < n.FirstToken {
		return false
	}

	first := tree.Tokens[n.FirstToken]
	last := tree.Tokens[n.LastToken]
	if first.Span.Start != n.Span.Start || last.Span.End != n.Span.End {
		return false
	}
	for i := n.FirstToken; i <= n.LastToken; i++ {
		if !n.Span.ContainsSpan(tree.Tokens[i].Span) {
			return false
		}
	}
	return true
}

func nodeContainsRange(n *syntax.Node, r text.Span) bool {
	if n == nil || !n.Span.IsValid() || !r.IsValid() {
		return false
	}
	if r.IsEmpty() {
		return n.Span.Start <= r.Start && r.Start <= n.Span.End
	}
	return n.Span.ContainsSpan(r)
}

// isFormatSafeAncestorKind reports whether formatting a node of this kind in
// isolation (holding everything outside its span fixed) cannot change the
// layout of its surroundings. Parenthesized entry lists and individual
// entries are excluded since widening or narrowing one entry's line can
// ripple into how its siblings are packed by the append-reshape stage.
func isFormatSafeAncestorKind(kind syntax.NodeKind) bool {
	switch kind {
	case syntax.KindModuleDeclaration, syntax.KindInterfaceDeclaration, syntax.KindProgramDeclaration,
		syntax.KindPackageDeclaration, syntax.KindClassDeclaration,
		syntax.KindModuleItem, syntax.KindDeclaration, syntax.KindAssignment,
		syntax.KindCallExpression, syntax.KindIfStatement, syntax.KindElseClause,
		syntax.KindCaseStatement, syntax.KindCaseItem, syntax.KindBlock,
		syntax.KindProceduralBlock, syntax.KindFunctionDeclaration, syntax.KindTaskDeclaration,
		syntax.KindLoopStatement:
		return true
	default:
		return false
	}
}

func rangeBlockingDiagnostic(code syntax.DiagnosticCode, sp text.Span, msg string) syntax.Diagnostic {
	return syntax.Diagnostic{
		Code:        code,
		Message:     msg,
		Severity:    syntax.SeverityError,
		Span:        sp,
		Source:      "formatter",
		Recoverable: false,
	}
}

func rangeBlockingFailure(code syntax.DiagnosticCode, sp text.Span, diagMsg, errMsg string) (syntax.NodeID, syntax.Diagnostic, error) {
	diag := rangeBlockingDiagnostic(code, sp, diagMsg)
	return syntax.NoNode, diag, &ErrUnsafeToFormat{Reason: UnsafeReasonSyntaxErrors, Message: errMsg}
}
