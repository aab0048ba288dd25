package syntax

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/testutil"
)

func TestParseValidModuleBuildsTree(t *testing.T) {
	t.Parallel()

	src := []byte(`module adder #(parameter WIDTH = 8) (
  input  logic [WIDTH-1:0] a,
  input  logic [WIDTH-1:0] b,
  output logic [WIDTH-1:0] sum
);
  assign sum = a + b;

  always_comb begin
    if (a == b) begin
      $display("equal");
    end else begin
      $display("not equal");
    end
  end
endmodule
`)

	tree, err := Parse(context.Background(), src, ParseOptions{URI: "file:///adder.sv", Version: 7})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tree.URI != "file:///adder.sv" || tree.Version != 7 {
		t.Fatalf("tree identity mismatch: uri=%q version=%d", tree.URI, tree.Version)
	}
	if tree.LineIndex == nil {
		t.Fatal("expected LineIndex to be populated")
	}
	if tree.Root == NoNode {
		t.Fatal("expected root node")
	}
	if len(tree.Tokens) == 0 || tree.Tokens[len(tree.Tokens)-1].Kind != lexer.TokenEOF {
		t.Fatal("expected EOF token")
	}
	if hasDiagnosticCode(tree.Diagnostics, DiagnosticParserErrorNode) {
		t.Fatalf("unexpected parser error diagnostics: %+v", tree.Diagnostics)
	}
	if hasDiagnosticCode(tree.Diagnostics, DiagnosticInternalAlignment) {
		t.Fatalf("unexpected internal alignment diagnostics: %+v", tree.Diagnostics)
	}

	top := tree.TopLevelDeclarationIDs()
	if len(top) != 1 {
		t.Fatalf("expected one top-level declaration, got %d", len(top))
	}
	module := tree.NodeByID(top[0])
	if module == nil || KindName(module.Kind) != "module_declaration" {
		t.Fatalf("expected module_declaration, got %+v", module)
	}

	var sawParamList, sawPortList, sawAssign, sawAlways bool
	for _, id := range tree.MemberNodeIDs(top[0]) {
		n := tree.NodeByID(id)
		switch KindName(n.Kind) {
		case "parameter_list":
			sawParamList = true
			if len(tree.MemberNodeIDs(id)) != 1 {
				t.Fatalf("expected one parameter, got %d", len(tree.MemberNodeIDs(id)))
			}
		case "port_list":
			sawPortList = true
			if len(tree.MemberNodeIDs(id)) != 3 {
				t.Fatalf("expected three ports, got %d", len(tree.MemberNodeIDs(id)))
			}
		case "module_item":
			members := tree.MemberNodeIDs(id)
			for _, m := range members {
				mn := tree.NodeByID(m)
				switch KindName(mn.Kind) {
				case "assignment":
					sawAssign = true
				case "procedural_block":
					sawAlways = true
				}
			}
		}
	}
	if !sawParamList || !sawPortList || !sawAssign || !sawAlways {
		t.Fatalf("missing expected constructs (param=%v port=%v assign=%v always=%v)", sawParamList, sawPortList, sawAssign, sawAlways)
	}
}

func TestParseCallWithArgumentsExposesArgumentList(t *testing.T) {
	t.Parallel()

	src := []byte("module m;\n  initial $display(\"%d %d\", a, b);\nendmodule\n")
	tree, err := Parse(context.Background(), src, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var call *Node
	for i := range tree.Nodes {
		if tree.Nodes[i].Kind == KindCallExpression {
			call = &tree.Nodes[i]
			break
		}
	}
	if call == nil {
		t.Fatal("expected a call_expression node")
	}
	var argList *Node
	for _, c := range call.Children {
		if !c.IsToken {
			n := tree.NodeByID(NodeID(c.Index))
			if n.Kind == KindArgumentList {
				argList = n
			}
		}
	}
	if argList == nil {
		t.Fatal("expected an argument_list child of the call")
	}
	if got := len(tree.MemberNodeIDs(argList.ID)); got != 3 {
		t.Fatalf("argument count = %d, want 3", got)
	}
}

func TestParseCaseStatementProducesOneItemPerBranch(t *testing.T) {
	t.Parallel()

	src := []byte(`module m;
  always_comb begin
    case (sel)
      2'b00: y = a;
      2'b01: y = b;
      default: y = c;
    endcase
  end
endmodule
`)
	tree, err := Parse(context.Background(), src, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var caseStmt *Node
	for i := range tree.Nodes {
		if tree.Nodes[i].Kind == KindCaseStatement {
			caseStmt = &tree.Nodes[i]
			break
		}
	}
	if caseStmt == nil {
		t.Fatal("expected a case_statement node")
	}
	if got := len(tree.MemberNodeIDs(caseStmt.ID)); got != 3 {
		t.Fatalf("case_item count = %d, want 3", got)
	}
}

func TestParseInvalidInputStillProducesATreeWithDiagnostics(t *testing.T) {
	t.Parallel()

	src := []byte("module Broken(\n  input a\n// never closes or terminates\n")
	tree, err := Parse(context.Background(), src, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tree == nil || tree.Root == NoNode {
		t.Fatal("expected tree on malformed input")
	}
	if len(tree.Diagnostics) == 0 {
		t.Fatal("expected diagnostics on malformed input")
	}
	if err := assertTreeAlignment(tree); err != nil {
		t.Fatal(err)
	}
}

func TestParseUnrecognizedTopLevelSpanEmitsErrorNode(t *testing.T) {
	t.Parallel()

	src := []byte("%%% garbage ;;; \nmodule m;\nendmodule\n")
	tree, err := Parse(context.Background(), src, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !hasDiagnosticCode(tree.Diagnostics, DiagnosticParserErrorNode) {
		t.Fatalf("expected a parser error diagnostic, got %+v", tree.Diagnostics)
	}
	var sawModule bool
	for _, id := range tree.TopLevelDeclarationIDs() {
		if n := tree.NodeByID(id); n != nil && n.Kind == KindModuleDeclaration {
			sawModule = true
		}
	}
	if !sawModule {
		t.Fatal("expected parser to recover and still find the trailing module")
	}
}

func TestParseCorpusFixturesNeverPanicAndStayAligned(t *testing.T) {
	t.Parallel()

	for _, setName := range []string{"valid", "invalid"} {
		t.Run(setName, func(t *testing.T) {
			t.Parallel()

			files, err := testutil.CorpusFiles(setName)
			if err != nil {
				t.Skipf("CorpusFiles(%q): %v", setName, err)
			}
			for _, file := range files {
				t.Run(filepath.Base(file), func(t *testing.T) {
					assertParseFile(t, file)
				})
			}
		})
	}
}

func assertParseFile(t *testing.T, file string) {
	t.Helper()

	src, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", file, err)
	}
	tree, err := Parse(context.Background(), src, ParseOptions{
		URI:     "file://" + file,
		Version: 1,
	})
	if err != nil {
		t.Fatalf("Parse(%q): %v", file, err)
	}
	if tree == nil || tree.Root == NoNode {
		t.Fatalf("Parse(%q): missing root", file)
	}
	if err := assertTreeAlignment(tree); err != nil {
		t.Fatalf("Parse(%q): %v", file, err)
	}
}

func hasDiagnosticCode(diags []Diagnostic, code DiagnosticCode) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func assertTreeAlignment(tree *Tree) error {
	if tree == nil {
		return fmt.Errorf("nil tree")
	}
	if len(tree.Tokens) == 0 {
		return fmt.Errorf("no tokens")
	}
	if len(tree.Nodes) == 0 {
		return fmt.Errorf("no nodes slice")
	}
	for i, tok := range tree.Tokens {
		if !tok.Span.IsValid() {
			return fmt.Errorf("invalid token span at %d: %s", i, tok.Span)
		}
		if i > 0 && tok.Span.Start < tree.Tokens[i-1].Span.Start {
			return fmt.Errorf("token start out of order at %d", i)
		}
	}
	for i, n := range tree.Nodes {
		if i == 0 {
			continue
		}
		if !n.Span.IsValid() {
			return fmt.Errorf("invalid node span for node %d: %s", n.ID, n.Span)
		}
		if int(n.FirstToken) >= len(tree.Tokens) || int(n.LastToken) >= len(tree.Tokens) {
			return fmt.Errorf("node %d token range out of bounds: %d..%d", n.ID, n.FirstToken, n.LastToken)
		}
		if n.LastToken < n.FirstToken {
			return fmt.Errorf("node %d invalid token range ordering: %d..%d", n.ID, n.FirstToken, n.LastToken)
		}
		for _, c := range n.Children {
			if c.IsToken {
				if int(c.Index) >= len(tree.Tokens) {
					return fmt.Errorf("node %d token child out of bounds: %d", n.ID, c.Index)
				}
				continue
			}
			if c.Index == 0 || int(c.Index) >= len(tree.Nodes) {
				return fmt.Errorf("node %d child node out of bounds: %d", n.ID, c.Index)
			}
			child := tree.Nodes[c.Index]
			if child.Parent != n.ID {
				return fmt.Errorf("child %d parent mismatch: got %d want %d", child.ID, child.Parent, n.ID)
			}
		}
	}
	return nil
}
