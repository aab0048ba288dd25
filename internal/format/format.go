package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

// Document runs the full formatting pipeline over a parsed syntax tree:
// annotate spacing and break decisions, resolve disabled ranges, build and
// expand the token-partition tree, wrap-search every unwrapped line, emit
// the result, and verify no token was lost or altered in the process.
func Document(ctx context.Context, tree *syntax.Tree, opts Options) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if tree == nil {
		return Result{}, errors.New("nil syntax tree")
	}
	normOpts, err := normalizeOptions(opts)
	if err != nil {
		return Result{}, err
	}

	diags := append([]syntax.Diagnostic(nil), tree.Diagnostics...)
	policy, policyDiags := analyzeSourcePolicy(tree.Source)
	diags = append(diags, policyDiags...)

	if !policy.ValidUTF8 {
		return unsafeResult(diags, UnsafeReasonInvalidUTF8, "input contains invalid UTF-8 bytes")
	}
	if hasUnsafeSyntaxDiagnostics(tree.Diagnostics) {
		return unsafeResult(diags, UnsafeReasonSyntaxErrors, "syntax diagnostics present (fail-closed v1 policy)")
	}

	root, excerpts, out, resourceExhausted, err := runPipeline(ctx, tree, normOpts)
	if err != nil {
		return Result{}, err
	}

	if w := normOpts.Execution.Diagnostics; w != nil {
		if normOpts.Execution.ShowTokenPartitionTree || normOpts.Execution.ShowLargestTokenPartitions > 0 || normOpts.Execution.ShowEquallyOptimalWrappings {
			dumpDiagnostics(w, root, excerpts, normOpts.Execution)
		}
	}

	return Result{
		Output:            out,
		Changed:           !bytes.Equal(out, tree.Source),
		Diagnostics:       diags,
		ResourceExhausted: resourceExhausted,
	}, nil
}

// runPipeline wires the core stages together and verifies the result before
// returning it: annotate -> disabled ranges -> partition -> expand ->
// worklist -> search -> emit -> verify. It also returns the partition tree
// and per-line excerpts so callers can render ExecutionControl diagnostics
// without rebuilding them.
func runPipeline(ctx context.Context, tree *syntax.Tree, opts Options) (*partitionNode, []formattedExcerpt, []byte, bool, error) {
	fts := annotate(tree, opts.Style)
	dr := resolveDisabledRanges(tree, opts.Style, opts.EnabledLines)
	applyDisabledRanges(tree, fts, dr)

	root := buildPartitionTree(tree, opts.Style)
	decideExpansion(tree, fts, opts.Style, root)
	worklist := buildWorklist(root)

	excerpts, resourceExhausted, err := searchWorklist(ctx, tree, fts, opts.Style, opts.Execution.MaxSearchStates, worklist)
	if err != nil {
		return root, nil, nil, false, err
	}

	out, _ := emit(tree, excerpts, dr, opts.Style)

	if err := verifyNoDataLoss(tree.Source, out); err != nil {
		return root, excerpts, nil, false, err
	}

	if resourceExhausted && opts.Execution.AnyStop {
		return root, excerpts, nil, false, &ErrCancelled{Message: "search-state budget exhausted and any_stop is set"}
	}

	return root, excerpts, out, resourceExhausted, nil
}

// Range formats a source range: the range is widened to the smallest
// format-safe ancestor node, the whole document is formatted once, and the
// ancestor's replacement text is sliced out of that single formatting pass.
func Range(ctx context.Context, tree *syntax.Tree, r text.Span, opts Options) (RangeResult, error) {
	if tree == nil {
		return RangeResult{}, errors.New("nil syntax tree")
	}
	if err := r.Validate(); err != nil {
		return RangeResult{}, fmt.Errorf("invalid range: %w", err)
	}
	srcSpan := sourceSpan(tree.Source)
	if !srcSpan.ContainsSpan(r) {
		return RangeResult{}, fmt.Errorf("range %s out of bounds for source length %d", r, len(tree.Source))
	}

	normOpts, err := normalizeOptions(opts)
	if err != nil {
		return RangeResult{}, err
	}

	ancestorID, diag, err := findRangeFormatAncestor(tree, r)
	if err != nil {
		return RangeResult{Diagnostics: []syntax.Diagnostic{diag}}, err
	}
	ancestor := tree.NodeByID(ancestorID)

	diags := append([]syntax.Diagnostic(nil), tree.Diagnostics...)
	policy, policyDiags := analyzeSourcePolicy(tree.Source)
	diags = append(diags, policyDiags...)
	if !policy.ValidUTF8 {
		res, resErr := unsafeResult(diags, UnsafeReasonInvalidUTF8, "input contains invalid UTF-8 bytes")
		return RangeResult{Diagnostics: res.Diagnostics}, resErr
	}
	if hasUnsafeSyntaxDiagnostics(tree.Diagnostics) {
		res, resErr := unsafeResult(diags, UnsafeReasonSyntaxErrors, "syntax diagnostics present (fail-closed v1 policy)")
		return RangeResult{Diagnostics: res.Diagnostics}, resErr
	}

	fts := annotate(tree, normOpts.Style)
	dr := resolveDisabledRanges(tree, normOpts.Style, normOpts.EnabledLines)
	applyDisabledRanges(tree, fts, dr)

	root := buildPartitionTree(tree, normOpts.Style)
	decideExpansion(tree, fts, normOpts.Style, root)
	worklist := buildWorklist(root)

	excerpts, resourceExhausted, err := searchWorklist(ctx, tree, fts, normOpts.Style, normOpts.Execution.MaxSearchStates, worklist)
	if err != nil {
		return RangeResult{Diagnostics: diags}, err
	}

	out, tokenSpans := emit(tree, excerpts, dr, normOpts.Style)
	if err := verifyNoDataLoss(tree.Source, out); err != nil {
		return RangeResult{Diagnostics: diags}, err
	}

	newSpan := tokenSpans[ancestor.FirstToken]
	newSpan.End = tokenSpans[ancestor.LastToken].End

	edit := text.ByteEdit{Span: ancestor.Span, NewText: out[newSpan.Start:newSpan.End]}
	return RangeResult{
		Edits:             []text.ByteEdit{edit},
		Diagnostics:       diags,
		ResourceExhausted: resourceExhausted,
	}, nil
}

// Source parses and formats source bytes in one step.
func Source(ctx context.Context, src []byte, uri string, opts Options) (Result, error) {
	tree, err := syntax.Parse(ctx, src, syntax.ParseOptions{URI: uri})
	if err != nil {
		return Result{}, err
	}
	return Document(ctx, tree, opts)
}

func hasUnsafeSyntaxDiagnostics(diags []syntax.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == syntax.SeverityError && d.Source != "formatter" {
			return true
		}
	}
	return false
}

func unsafeResult(diags []syntax.Diagnostic, reason UnsafeReason, msg string) (Result, error) {
	return Result{
			Output:      nil,
			Changed:     false,
			Diagnostics: diags,
		}, &ErrUnsafeToFormat{
			Reason:  reason,
			Message: msg,
		}
}
