package format

import (
	"github.com/antmicro/verible/internal/syntax"
)

// partitionPolicy is the closed tagged union of partition behaviors a node
// in the token-partition tree may carry.
type partitionPolicy uint8

const (
	policyInline partitionPolicy = iota
	policyAlwaysExpand
	policyFitOnLineElseExpand
	policyAppendFittingSubPartitions
)

// partitionNode is one node of the token-partition tree: either a leaf
// carrying a contiguous token range, or an interior node grouping children
// whose ranges are disjoint and cover the parent's range in order.
type partitionNode struct {
	Policy            partitionPolicy
	IndentationSpaces int
	FirstToken        uint32
	LastToken         uint32
	Children          []*partitionNode

	// Expanded is set by the expansion-decision pass (expand.go).
	Expanded bool
}

func (n *partitionNode) isLeaf() bool { return len(n.Children) == 0 }

func leafNode(first, last uint32, indent int, policy partitionPolicy) *partitionNode {
	return &partitionNode{Policy: policy, IndentationSpaces: indent, FirstToken: first, LastToken: last}
}

// buildPartitionTree unwraps tree into the token-partition tree described by
// the policy table: module/interface/program/package/class/function/task
// bodies always expand one item per line, port/parameter lists fit-or-expand
// one entry per line, calls append fitting arguments, and if/case/loop
// bodies always expand their branches.
func buildPartitionTree(tree *syntax.Tree, style Style) *partitionNode {
	root := &partitionNode{Policy: policyAlwaysExpand}

	var top []*partitionNode
	for _, id := range tree.TopLevelDeclarationIDs() {
		top = append(top, buildConstruct(tree, id, 0, style))
	}

	lastReal := uint32(0)
	if n := len(tree.Tokens); n > 1 {
		lastReal = uint32(n - 2) // exclude the trailing EOF token
	}
	root.Children = fillTokenGaps(top, 0, lastReal, 0)
	root.FirstToken, root.LastToken = boundsOf(root.Children, 0, lastReal)
	return root
}

func buildConstruct(tree *syntax.Tree, id syntax.NodeID, indent int, style Style) *partitionNode {
	n := tree.NodeByID(id)
	if n == nil {
		return leafNode(0, 0, indent, policyInline)
	}

	switch n.Kind {
	case syntax.KindModuleDeclaration, syntax.KindInterfaceDeclaration,
		syntax.KindProgramDeclaration, syntax.KindPackageDeclaration,
		syntax.KindClassDeclaration, syntax.KindFunctionDeclaration, syntax.KindTaskDeclaration:
		return buildBodyConstruct(tree, n, indent, style)

	case syntax.KindModuleItem:
		if members := tree.MemberNodeIDs(id); len(members) > 0 {
			return buildConstruct(tree, members[0], indent, style)
		}
		return leafNode(n.FirstToken, n.LastToken, indent, policyFitOnLineElseExpand)

	case syntax.KindProceduralBlock:
		return buildProceduralBlock(tree, n, indent, style)

	case syntax.KindBlock:
		return buildBlock(tree, n, indent, style)

	case syntax.KindIfStatement:
		return buildIfStatement(tree, n, indent, style)

	case syntax.KindCaseStatement:
		return buildCaseStatement(tree, n, indent, style)

	case syntax.KindCaseItem:
		return buildCaseItem(tree, n, indent, style)

	case syntax.KindLoopStatement:
		return buildLoopStatement(tree, n, indent, style)

	case syntax.KindCallExpression:
		return buildCallExpression(tree, n, indent, style)

	case syntax.KindPreprocessorDirective, syntax.KindErrorNode:
		return leafNode(n.FirstToken, n.LastToken, indent, policyInline)

	default: // KindAssignment, KindDeclaration, and anything unrecognized.
		return leafNode(n.FirstToken, n.LastToken, indent, policyFitOnLineElseExpand)
	}
}

// buildBodyConstruct handles every AlwaysExpand body-with-header-and-items
// construct: module/interface/program/package/class/function/task. Its
// optional parameter_list and port_list children become their own
// one-entry-per-line sub-nodes, sharing the wrap indent rather than the
// regular item indent since they're a wrapped signature, not a body item.
// Everything else in the signature (keyword, name, punctuation) is filled in
// as inline leaves; the trailing end-keyword is always split into its own
// leaf so it never gets cost-merged onto the line before it.
func buildBodyConstruct(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	itemIndent := indent + style.IndentationSpaces
	wrapIndent := indent + style.WrapSpaces

	var structured []*partitionNode
	for _, childID := range directNodeChildren(n) {
		child := tree.NodeByID(childID)
		switch child.Kind {
		case syntax.KindParameterList, syntax.KindPortList:
			if entries := buildParenEntryList(tree, child, wrapIndent); entries != nil {
				structured = append(structured, entries)
			}
		default:
			structured = append(structured, buildConstruct(tree, childID, itemIndent, style))
		}
	}

	bodyEnd := n.LastToken
	splitEndKeyword := n.LastToken > n.FirstToken && int(n.LastToken) < len(tree.Tokens) && isEndKeyword(tree.Tokens[n.LastToken].Kind)
	if splitEndKeyword {
		bodyEnd = n.LastToken - 1
	}

	node.Children = fillTokenGaps(structured, n.FirstToken, bodyEnd, indent)
	if splitEndKeyword {
		node.Children = append(node.Children, leafNode(n.LastToken, n.LastToken, indent, policyInline))
	}
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

// buildParenEntryList handles port_list/parameter_list: the opening and
// closing parens are left for the caller's surrounding inline fillers to
// absorb (so "module m(" and ");" stay glued to their neighbors), and each
// entry's own trailing comma is folded into that entry's token range so the
// comma never becomes a worklist line of its own. Returns nil for an empty
// list, leaving "()" to the caller's generic filler.
func buildParenEntryList(tree *syntax.Tree, n *syntax.Node, indent int) *partitionNode {
	ids := directNodeChildren(n)
	if len(ids) == 0 {
		return nil
	}

	entries := make([]*partitionNode, 0, len(ids))
	for i, childID := range ids {
		entry := tree.NodeByID(childID)
		last := entry.LastToken
		if i < len(ids)-1 {
			if next := tree.NodeByID(ids[i+1]); next.FirstToken > 0 {
				last = next.FirstToken - 1
			}
		}
		entries = append(entries, leafNode(entry.FirstToken, last, indent, policyFitOnLineElseExpand))
	}

	return &partitionNode{
		Policy:            policyAlwaysExpand,
		IndentationSpaces: indent,
		Children:          entries,
		FirstToken:        entries[0].FirstToken,
		LastToken:         entries[len(entries)-1].LastToken,
	}
}

func buildProceduralBlock(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	var structured []*partitionNode
	if members := directNodeChildren(n); len(members) > 0 {
		structured = append(structured, buildConstruct(tree, members[0], indent, style))
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func buildBlock(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	itemIndent := indent + style.IndentationSpaces
	var structured []*partitionNode
	for _, childID := range directNodeChildren(n) {
		structured = append(structured, buildConstruct(tree, childID, itemIndent, style))
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func buildIfStatement(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	children := directNodeChildren(n)
	var structured []*partitionNode
	if len(children) > 0 {
		structured = append(structured, buildConstruct(tree, children[0], indent, style))
	}
	if len(children) > 1 {
		elseClause := tree.NodeByID(children[1])
		if elseMembers := directNodeChildren(elseClause); len(elseMembers) > 0 {
			structured = append(structured, buildConstruct(tree, elseMembers[0], indent, style))
		}
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func buildCaseStatement(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	itemIndent := indent + style.IndentationSpaces
	var structured []*partitionNode
	for _, childID := range directNodeChildren(n) {
		structured = append(structured, buildConstruct(tree, childID, itemIndent, style))
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func buildCaseItem(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	var structured []*partitionNode
	if members := directNodeChildren(n); len(members) > 0 {
		structured = append(structured, buildConstruct(tree, members[0], indent, style))
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func buildLoopStatement(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAlwaysExpand, IndentationSpaces: indent}
	var structured []*partitionNode
	if members := directNodeChildren(n); len(members) > 0 {
		structured = append(structured, buildConstruct(tree, members[0], indent, style))
	}
	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

// buildCallExpression handles call_expression: AppendFittingSubPartitions
// with a callee leaf followed by one leaf per argument; reshapeAppend in
// expand.go decides
// how many of those arguments pack onto the callee's line.
func buildCallExpression(tree *syntax.Tree, n *syntax.Node, indent int, style Style) *partitionNode {
	node := &partitionNode{Policy: policyAppendFittingSubPartitions, IndentationSpaces: indent}

	var structured []*partitionNode
	for _, c := range n.Children {
		if c.IsToken {
			structured = append(structured, leafNode(c.Index, c.Index, indent, policyFitOnLineElseExpand))
			continue
		}
		child := tree.NodeByID(syntax.NodeID(c.Index))
		if child.Kind != syntax.KindArgumentList {
			continue
		}
		argIndent := indent + style.WrapSpaces
		for _, argID := range directNodeChildren(child) {
			arg := tree.NodeByID(argID)
			structured = append(structured, leafNode(arg.FirstToken, arg.LastToken, argIndent, policyFitOnLineElseExpand))
		}
	}

	node.Children = fillTokenGaps(structured, n.FirstToken, n.LastToken, indent)
	node.FirstToken, node.LastToken = n.FirstToken, n.LastToken
	return node
}

func directNodeChildren(n *syntax.Node) []syntax.NodeID {
	if n == nil {
		return nil
	}
	var out []syntax.NodeID
	for _, c := range n.Children {
		if !c.IsToken {
			out = append(out, syntax.NodeID(c.Index))
		}
	}
	return out
}

// fillTokenGaps inserts inline filler leaves for any token in [lo, hi] not
// covered by one of the structured children, in source order. This is what
// guarantees the partition tree's coverage invariant — every token in a
// construct's range appears in exactly one leaf — without every builder
// having to hand-compute keyword/punctuation boundaries.
func fillTokenGaps(children []*partitionNode, lo, hi uint32, fillIndent int) []*partitionNode {
	if len(children) == 0 {
		if hi < lo {
			return nil
		}
		return []*partitionNode{leafNode(lo, hi, fillIndent, policyInline)}
	}

	out := make([]*partitionNode, 0, len(children)+2)
	cursor := lo
	for _, c := range children {
		if c.FirstToken > cursor && c.FirstToken > 0 {
			out = append(out, leafNode(cursor, c.FirstToken-1, fillIndent, policyInline))
		}
		out = append(out, c)
		if c.LastToken+1 > cursor {
			cursor = c.LastToken + 1
		}
	}
	if cursor <= hi {
		out = append(out, leafNode(cursor, hi, fillIndent, policyInline))
	}
	return out
}

func boundsOf(children []*partitionNode, lo, hi uint32) (uint32, uint32) {
	if len(children) == 0 {
		return lo, hi
	}
	return children[0].FirstToken, children[len(children)-1].LastToken
}
