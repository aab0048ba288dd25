package format

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

func TestRangeWidensToDeclarationAncestorAndReturnsEdit(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\nwire   a;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "x.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	start := bytes.Index(src, []byte("a"))
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 1)}

	got, err := Range(context.Background(), tree, r, Options{})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(got.Edits))
	}

	out, err := text.ApplyEdits(src, got.Edits)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if strings.Contains(string(out), "wire   a") {
		t.Fatalf("expected collapsed whitespace in the widened declaration, got:\n%s", out)
	}
	if !strings.Contains(string(out), "wire a;") {
		t.Fatalf("expected normalized declaration text, got:\n%s", out)
	}
}

func TestRangeWidensWhitespaceSelectionToModuleAncestor(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\n  wire a;\n\n\n\n  wire b;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "x.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	needle := []byte(";\n\n\n\n  wire b")
	pos := bytes.Index(src, needle)
	if pos < 0 {
		t.Fatal("failed to find whitespace selection marker")
	}
	// Select the blank-line whitespace between the two declarations.
	r := text.Span{Start: text.ByteOffset(pos + 1), End: text.ByteOffset(pos + 3)}

	got, err := Range(context.Background(), tree, r, Options{})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(got.Edits))
	}

	edit := got.Edits[0]
	if edit.Span.Start != 0 {
		t.Fatalf("expected the widened ancestor to start at the module keyword, got span %s", edit.Span)
	}
	if !strings.Contains(string(src[edit.Span.Start:edit.Span.End]), "endmodule") {
		t.Fatalf("expected the widened ancestor to cover the whole module, got %q", src[edit.Span.Start:edit.Span.End])
	}
	if strings.Count(string(edit.NewText), "\n\n\n\n") != 0 {
		t.Fatalf("expected excess blank lines to be capped, got %q", edit.NewText)
	}
}

func TestRangeRefusesWhenNoSafeAncestorExists(t *testing.T) {
	t.Parallel()

	src := []byte("`define FOO 1\n\nmodule m;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "x.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	blankStart := bytes.Index(src, []byte("\n\n"))
	if blankStart < 0 {
		t.Fatal("failed to find blank line")
	}
	r := text.Span{Start: text.ByteOffset(blankStart + 1), End: text.ByteOffset(blankStart + 2)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err == nil || !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %v", err)
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected formatter blocking diagnostic")
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterRangeNoSafeAncestor {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected %q diagnostic, got %+v", DiagnosticFormatterRangeNoSafeAncestor, res.Diagnostics)
	}
}

func TestRangeRefusesUnboundedAncestorCoverage(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\n  wire a;\nendmodule\n")
	tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "x.sv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var decl *syntax.Node
	for i := 1; i < len(tree.Nodes); i++ {
		n := &tree.Nodes[i]
		if n.Kind == syntax.KindDeclaration {
			decl = n
			break
		}
	}
	if decl == nil {
		t.Fatal("declaration node not found")
	}
	decl.Span.End--

	start := bytes.Index(src, []byte("a"))
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 1)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err == nil || !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %v", err)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterRangeUnboundedNode {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected %q diagnostic, got %+v", DiagnosticFormatterRangeUnboundedNode, res.Diagnostics)
	}
}
