package format

import (
	"github.com/antmicro/verible/internal/syntax"
)

// decideExpansion runs the post-order expansion-decision pass over the
// token-partition tree: a node becomes "expanded" (broken into one
// unwrapped line per child) if any descendant already expanded (expansion
// is monotone, propagating up), or per its own policy otherwise.
// AppendFittingSubPartitions nodes additionally reshape before the fit
// check, using a greedy argument-packing rule.
func decideExpansion(tree *syntax.Tree, fts []formatToken, style Style, node *partitionNode) bool {
	if node.isLeaf() {
		node.Expanded = false
		return false
	}

	anyChildExpanded := false
	for _, c := range node.Children {
		if decideExpansion(tree, fts, style, c) {
			anyChildExpanded = true
		}
	}

	switch node.Policy {
	case policyAlwaysExpand:
		node.Expanded = anyChildExpanded || len(node.Children) >= 2
	case policyFitOnLineElseExpand:
		if anyChildExpanded {
			node.Expanded = true
		} else {
			node.Expanded = !fitsOnOneLine(tree, fts, node, style)
		}
	case policyAppendFittingSubPartitions:
		reshaped := reshapeAppend(node, tree, fts, style)
		node.Expanded = reshaped || anyChildExpanded
	default: // policyInline
		node.Expanded = anyChildExpanded
	}
	return node.Expanded
}

func fitsOnOneLine(tree *syntax.Tree, fts []formatToken, node *partitionNode, style Style) bool {
	if node.LastToken < node.FirstToken {
		return true
	}
	return lineWidth(tree, fts, node.FirstToken, node.LastToken, node.IndentationSpaces) <= style.ColumnLimit
}

// lineWidth returns the column reached after laying out tokens
// [first, last] starting at startCol, as if they began a fresh line (the
// first token takes no leading space; every subsequent token uses its
// annotated SpacesRequired).
func lineWidth(tree *syntax.Tree, fts []formatToken, first, last uint32, startCol int) int {
	col := startCol
	for i := first; i <= last; i++ {
		if i > first {
			col += fts[i].SpacesRequired
		}
		col += tokenWidth(tree, i)
	}
	return col
}

// appendWidth extends col by laying out tokens [first,last] as a
// continuation of the current line: every token, including the first,
// contributes its annotated SpacesRequired.
func appendWidth(tree *syntax.Tree, fts []formatToken, first, last uint32, col int) int {
	for i := first; i <= last; i++ {
		col += fts[i].SpacesRequired
		col += tokenWidth(tree, i)
	}
	return col
}

func tokenWidth(tree *syntax.Tree, i uint32) int {
	if int(i) >= len(tree.Tokens) {
		return 0
	}
	return len(tree.Tokens[i].Bytes(tree.Source))
}

// reshapeAppend greedily packs node's children onto as few lines as fit
// within the column limit, starting a new group — indented one wrap level
// deeper — each time the next child would overflow. Returns whether the
// node ended up needing more than one group (i.e. expanded).
func reshapeAppend(node *partitionNode, tree *syntax.Tree, fts []formatToken, style Style) bool {
	if len(node.Children) <= 1 {
		return false
	}

	groups := [][]*partitionNode{{node.Children[0]}}
	col := lineWidth(tree, fts, node.Children[0].FirstToken, node.Children[0].LastToken, node.IndentationSpaces)

	for _, c := range node.Children[1:] {
		tentative := appendWidth(tree, fts, c.FirstToken, c.LastToken, col)
		if tentative <= style.ColumnLimit {
			groups[len(groups)-1] = append(groups[len(groups)-1], c)
			col = tentative
			continue
		}
		groups = append(groups, []*partitionNode{c})
		col = lineWidth(tree, fts, c.FirstToken, c.LastToken, node.IndentationSpaces+style.WrapSpaces)
	}

	if len(groups) <= 1 {
		return false
	}

	newChildren := make([]*partitionNode, 0, len(groups))
	for gi, g := range groups {
		indent := node.IndentationSpaces
		if gi > 0 {
			indent = node.IndentationSpaces + style.WrapSpaces
		}
		group := &partitionNode{
			Policy:            policyFitOnLineElseExpand,
			IndentationSpaces: indent,
			Children:          g,
			FirstToken:        g[0].FirstToken,
			LastToken:         g[len(g)-1].LastToken,
		}
		newChildren = append(newChildren, group)
	}
	node.Children = newChildren
	return true
}

// buildWorklist returns the pre-order frontier of unwrapped lines: the root
// is always treated as expanded, so this descends into its children and
// collects every node that is itself unexpanded (one leaf per worklist
// entry) or recurses into expanded interior nodes.
func buildWorklist(root *partitionNode) []*partitionNode {
	var out []*partitionNode
	var walk func(n *partitionNode)
	walk = func(n *partitionNode) {
		if !n.Expanded {
			if n.LastToken >= n.FirstToken || len(n.Children) > 0 {
				out = append(out, n)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if len(root.Children) == 0 {
		return []*partitionNode{root}
	}
	for _, c := range root.Children {
		walk(c)
	}
	return out
}
