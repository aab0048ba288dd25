package format

import (
	"bytes"
	"context"
	"testing"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

func TestNormalizeOptionsDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	got, err := normalizeOptions(Options{})
	if err != nil {
		t.Fatalf("normalizeOptions default: %v", err)
	}
	if got.ColumnLimit != defaultColumnLimit {
		t.Fatalf("ColumnLimit = %d, want %d", got.ColumnLimit, defaultColumnLimit)
	}
	if got.IndentationSpaces != defaultIndentationSpaces {
		t.Fatalf("IndentationSpaces = %d, want %d", got.IndentationSpaces, defaultIndentationSpaces)
	}
	if got.MaxBlankLines != defaultMaxBlankLines {
		t.Fatalf("MaxBlankLines = %d, want %d", got.MaxBlankLines, defaultMaxBlankLines)
	}
	if got.Execution.MaxSearchStates != defaultMaxSearchStates {
		t.Fatalf("MaxSearchStates = %d, want %d", got.Execution.MaxSearchStates, defaultMaxSearchStates)
	}
	if got.Execution.Diagnostics == nil {
		t.Fatal("expected default Diagnostics writer to be non-nil")
	}

	if _, err := normalizeOptions(Options{Style: Style{ColumnLimit: -1}}); err == nil {
		t.Fatal("expected error for negative ColumnLimit")
	}
	if _, err := normalizeOptions(Options{Style: Style{MaxBlankLines: -1}}); err == nil {
		t.Fatal("expected error for negative MaxBlankLines")
	}
}

func TestDefaultOptionsEnablesPortDeclarationFormatting(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.FormatModulePortDeclarations {
		t.Fatal("DefaultOptions should enable FormatModulePortDeclarations")
	}
}

func TestDocumentReportsMixedNewlines(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\r\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "test.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	res, err := Document(context.Background(), tree, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	var sawMixed bool
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterMixedNewlines {
			sawMixed = true
			break
		}
	}
	if !sawMixed {
		t.Fatal("expected mixed newline formatter diagnostic")
	}
}

func TestDocumentRefusesInvalidUTF8(t *testing.T) {
	t.Parallel()

	tree := &syntax.Tree{Source: []byte{0xff}}
	res, err := Document(context.Background(), tree, Options{})
	if err == nil {
		t.Fatal("expected ErrUnsafeToFormat")
	}
	if !IsErrUnsafeToFormat(err) {
		t.Fatalf("unexpected error type: %T %v", err, err)
	}

	var unsafe *ErrUnsafeToFormat
	if !AsUnsafeToFormat(err, &unsafe) {
		t.Fatal("AsUnsafeToFormat = false")
	}
	if unsafe.Reason != UnsafeReasonInvalidUTF8 {
		t.Fatalf("unsafe reason = %q, want %q", unsafe.Reason, UnsafeReasonInvalidUTF8)
	}

	var sawInvalidUTF8 bool
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterInvalidUTF8 {
			sawInvalidUTF8 = true
			break
		}
	}
	if !sawInvalidUTF8 {
		t.Fatal("expected invalid UTF-8 formatter diagnostic")
	}
}

func TestSourceRefusesUnsafeSyntaxAndReturnsDiagnostics(t *testing.T) {
	t.Parallel()

	res, err := Source(context.Background(), []byte("module m(;\n"), "test.sv", Options{})
	if err == nil {
		t.Fatal("expected unsafe formatting refusal")
	}
	if !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %T %v", err, err)
	}

	var unsafe *ErrUnsafeToFormat
	if !AsUnsafeToFormat(err, &unsafe) {
		t.Fatal("AsUnsafeToFormat = false")
	}
	if unsafe.Reason != UnsafeReasonSyntaxErrors {
		t.Fatalf("unsafe reason = %q, want %q", unsafe.Reason, UnsafeReasonSyntaxErrors)
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected parse diagnostics in result")
	}
}

func TestDocumentRoundTripsAlreadyFormattedModule(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\n  wire a;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "test.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	res, err := Document(context.Background(), tree, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if len(res.Output) == 0 {
		t.Fatal("expected formatted output")
	}
}

func TestRangeReturnsEditForModuleAncestor(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\nwire a;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "test.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	start := bytes.Index(src, []byte("wire"))
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 4)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(res.Edits) != 1 {
		t.Fatalf("expected one edit for the widened module ancestor, got %d", len(res.Edits))
	}
}
