package vdom

// MountOps returns the ops that rebuild an already reconciled sibling group
// on an empty host under parent. Node IDs are kept, so listeners and later
// diffs stay valid. Component nodes carry their instance's nodes as
// children, the way a composed snapshot holds them.
func MountOps(parent NodeID, nodes []*VNode) []Op {
	var ops []Op
	for i, n := range nodes {
		ops = mountNode(ops, n)
		ops = append(ops, Op{Kind: OpInsertChild, Node: n.ID, Parent: parent, Index: i})
	}
	return ops
}

func mountNode(ops []Op, n *VNode) []Op {
	switch n.Kind {
	case KindText:
		return append(ops, Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindText, Value: n.Text})
	case KindPlaceholder:
		return append(ops, Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindPlaceholder})
	case KindComponent:
		ops = append(ops, Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindComponent, Tag: n.Tag})
	case KindElement:
		ops = append(ops, Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindElement, Tag: n.Tag})
		for _, k := range sortedKeys(n.Attrs) {
			ops = append(ops, Op{Kind: OpSetAttribute, Node: n.ID, Name: k, Value: n.Attrs[k]})
		}
		for _, k := range sortedKeys(n.Events) {
			ops = append(ops, Op{Kind: OpSetAttribute, Node: n.ID, Name: EventAttr(k)})
		}
		if text, ok := n.TextContent(); ok {
			if text != "" {
				ops = append(ops, Op{Kind: OpSetText, Node: n.ID, Value: text})
			}
			return ops
		}
	}
	for i, c := range n.Children {
		ops = mountNode(ops, c)
		ops = append(ops, Op{Kind: OpInsertChild, Node: c.ID, Parent: n.ID, Index: i})
	}
	return ops
}
