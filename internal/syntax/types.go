// Package syntax builds a lossless CST over SystemVerilog source by combining
// the token/trivia lexer with a hand-written recursive-descent tree builder.
package syntax

import (
	"fmt"

	"github.com/antmicro/verible/internal/lexer"
	"github.com/antmicro/verible/internal/text"
)

// NodeKind identifies the syntactic construct a CST node represents.
type NodeKind uint16

const (
	// KindUnknown is the zero value; it never appears on a built node.
	KindUnknown NodeKind = iota
	// KindSourceFile is the synthetic root wrapping every top-level item.
	KindSourceFile
	// KindModuleDeclaration covers module/macromodule bodies.
	KindModuleDeclaration
	// KindInterfaceDeclaration covers interface bodies.
	KindInterfaceDeclaration
	// KindProgramDeclaration covers program bodies.
	KindProgramDeclaration
	// KindPackageDeclaration covers package bodies.
	KindPackageDeclaration
	// KindClassDeclaration covers class bodies.
	KindClassDeclaration
	// KindPortList is a parenthesized module/interface port list.
	KindPortList
	// KindPort is a single port in a port list.
	KindPort
	// KindParameterList is a `#( ... )` parameter port list.
	KindParameterList
	// KindParameter is a single parameter declaration in a parameter list.
	KindParameter
	// KindModuleItem wraps one item of a module/interface/program/package/class body.
	KindModuleItem
	// KindDeclaration is a variable/net/typedef declaration statement.
	KindDeclaration
	// KindAssignment is a continuous or blocking/non-blocking assignment.
	KindAssignment
	// KindCallExpression is a function/task/system-task call with an argument list.
	KindCallExpression
	// KindArgumentList is the parenthesized argument list of a call.
	KindArgumentList
	// KindArgument is a single comma-separated argument inside an argument list.
	KindArgument
	// KindIfStatement covers `if` together with its `else` clause.
	KindIfStatement
	// KindElseClause is the `else` branch of an if-statement.
	KindElseClause
	// KindCaseStatement covers `case`/`casex`/`casez`.
	KindCaseStatement
	// KindCaseItem is one labeled branch of a case statement.
	KindCaseItem
	// KindBlock is a `begin ... end` statement block.
	KindBlock
	// KindProceduralBlock is an always/always_comb/always_ff/always_latch/initial/final block.
	KindProceduralBlock
	// KindFunctionDeclaration covers function bodies.
	KindFunctionDeclaration
	// KindTaskDeclaration covers task bodies.
	KindTaskDeclaration
	// KindLoopStatement covers for/while/do/repeat/forever.
	KindLoopStatement
	// KindPreprocessorDirective is a `` `directive `` token surfaced as a leaf node.
	KindPreprocessorDirective
	// KindErrorNode wraps a token span the parser could not attach to a known construct.
	KindErrorNode
)

var nodeKindNames = map[NodeKind]string{
	KindUnknown:               "unknown",
	KindSourceFile:            "source_file",
	KindModuleDeclaration:     "module_declaration",
	KindInterfaceDeclaration:  "interface_declaration",
	KindProgramDeclaration:    "program_declaration",
	KindPackageDeclaration:    "package_declaration",
	KindClassDeclaration:      "class_declaration",
	KindPortList:              "port_list",
	KindPort:                  "port",
	KindParameterList:         "parameter_list",
	KindParameter:             "parameter",
	KindModuleItem:            "module_item",
	KindDeclaration:           "declaration",
	KindAssignment:            "assignment",
	KindCallExpression:        "call_expression",
	KindArgumentList:          "argument_list",
	KindArgument:              "argument",
	KindIfStatement:           "if_statement",
	KindElseClause:            "else_clause",
	KindCaseStatement:         "case_statement",
	KindCaseItem:              "case_item",
	KindBlock:                 "block",
	KindProceduralBlock:       "procedural_block",
	KindFunctionDeclaration:   "function_declaration",
	KindTaskDeclaration:       "task_declaration",
	KindLoopStatement:         "loop_statement",
	KindPreprocessorDirective: "preprocessor_directive",
	KindErrorNode:             "error_node",
}

// KindName resolves kind to its construct name, matching the names used in diagnostics and tests.
func KindName(kind NodeKind) string {
	if name, ok := nodeKindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", uint16(kind))
}

// NodeID identifies a node in Tree.Nodes. Zero (NoNode) is a sentinel.
type NodeID uint32

// NoNode is the sentinel value for the absence of a node.
const NoNode NodeID = 0

// ChildRef references either a token or a node child, in source order.
type ChildRef struct {
	IsToken bool
	Index   uint32 // token index or node ID
}

// NodeFlags carry parser recovery/error metadata.
type NodeFlags uint8

const (
	// NodeFlagError marks a node the parser could not fully attach to a construct.
	NodeFlagError NodeFlags = 1 << iota
	// NodeFlagRecovered marks a subtree produced via error recovery (resynchronization).
	NodeFlagRecovered
)

// Has reports whether all bits in mask are set.
func (f NodeFlags) Has(mask NodeFlags) bool {
	return f&mask == mask
}

// Node is a CST node in source order with token coverage.
type Node struct {
	ID         NodeID
	Kind       NodeKind
	Span       text.Span
	FirstToken uint32 // inclusive, into Tree.Tokens
	LastToken  uint32 // inclusive, into Tree.Tokens
	Parent     NodeID
	Children   []ChildRef
	Flags      NodeFlags
}

func (n Node) String() string {
	return fmt.Sprintf("Node{id=%d kind=%s span=%s tokens=%d..%d}", n.ID, KindName(n.Kind), n.Span, n.FirstToken, n.LastToken)
}

// Severity is a diagnostic severity level.
type Severity uint8

const (
	// SeverityError indicates an error diagnostic.
	SeverityError Severity = iota + 1
	// SeverityWarning indicates a warning diagnostic.
	SeverityWarning
	// SeverityInfo indicates an informational diagnostic.
	SeverityInfo
)

// DiagnosticCode identifies a syntax-layer diagnostic kind.
type DiagnosticCode string

const (
	// DiagnosticParserErrorNode reports a construct the parser could not recognize.
	DiagnosticParserErrorNode DiagnosticCode = "PARSE_ERROR_NODE"
	// DiagnosticParserUnexpectedToken reports an unexpected token during recovery.
	DiagnosticParserUnexpectedToken DiagnosticCode = "PARSE_UNEXPECTED_TOKEN"
	// DiagnosticInternalAlignment reports parser/lexer alignment invariant failures.
	DiagnosticInternalAlignment DiagnosticCode = "INTERNAL_ALIGNMENT"
)

// RelatedDiagnostic adds context to a diagnostic.
type RelatedDiagnostic struct {
	Message string
	Span    text.Span
}

// Diagnostic is a unified syntax diagnostic.
type Diagnostic struct {
	Code        DiagnosticCode
	Message     string
	Severity    Severity
	Span        text.Span
	Related     []RelatedDiagnostic
	Source      string // lexer | parser
	Recoverable bool
}

// ParseOptions control syntax parsing behavior.
type ParseOptions struct {
	URI     string
	Version int32
}

// Tree is the immutable syntax parse result for one source buffer.
type Tree struct {
	URI         string
	Version     int32
	Source      []byte
	Tokens      []lexer.Token
	Nodes       []Node // index 0 is unused sentinel; real NodeIDs are 1-based
	Root        NodeID
	Diagnostics []Diagnostic
	LineIndex   *text.LineIndex
}

// NodeByID returns the node for id or nil if not present.
func (t *Tree) NodeByID(id NodeID) *Node {
	if t == nil || id == NoNode {
		return nil
	}
	idx := int(id)
	if idx < 0 || idx >= len(t.Nodes) {
		return nil
	}
	return &t.Nodes[idx]
}

// RootNode returns the root node or nil.
func (t *Tree) RootNode() *Node {
	return t.NodeByID(t.Root)
}

// TopLevelDeclarationIDs returns the direct children of the root source_file node.
func (t *Tree) TopLevelDeclarationIDs() []NodeID {
	root := t.RootNode()
	if root == nil {
		return nil
	}
	var out []NodeID
	for _, c := range root.Children {
		if !c.IsToken {
			out = append(out, NodeID(c.Index))
		}
	}
	return out
}

// MemberNodeIDs returns the node children of id (module items, case items, and so on).
func (t *Tree) MemberNodeIDs(id NodeID) []NodeID {
	n := t.NodeByID(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, c := range n.Children {
		if !c.IsToken {
			out = append(out, NodeID(c.Index))
		}
	}
	return out
}
