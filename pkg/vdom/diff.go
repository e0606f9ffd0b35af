package vdom

// Result is the outcome of one Reconcile call.
type Result struct {
	Ops []Op

	// Mounted are component nodes created in this pass.
	Mounted []*VNode
	// Updated are component nodes carried over from the previous tree; their
	// props may have changed.
	Updated []*VNode
	// Unmounted are the IDs of component nodes removed in this pass,
	// including those inside removed subtrees.
	Unmounted []NodeID
}

// Reconciler turns pairs of trees into host mutations and allocates the
// NodeIDs of created nodes. One Reconciler serves every instance mounted on
// the same host so that IDs never collide.
type Reconciler struct {
	lastID NodeID
	res    *Result
}

// NewReconciler creates a reconciler whose first allocated ID follows RootID.
func NewReconciler() *Reconciler {
	return &Reconciler{lastID: RootID}
}

func (r *Reconciler) alloc() NodeID {
	r.lastID++
	return r.lastID
}

// Reconcile diffs the sibling group prev against next under parent and
// returns the ordered operations that turn one into the other. Nodes in
// next take the IDs of the prev nodes they match; created nodes get fresh
// IDs. Passing a nil prev mounts next.
func (r *Reconciler) Reconcile(parent NodeID, prev, next []*VNode) *Result {
	r.res = &Result{}
	defer func() { r.res = nil }()
	r.diffChildren(parent, prev, next)
	return r.res
}

func (r *Reconciler) emit(op Op) {
	r.res.Ops = append(r.res.Ops, op)
}

func hasExplicitKeys(nodes []*VNode) bool {
	for _, n := range nodes {
		if n.KeyExplicit {
			return true
		}
	}
	return false
}

func (r *Reconciler) diffChildren(parent NodeID, prev, next []*VNode) {
	switch {
	case len(prev) == 0:
		for i, n := range next {
			r.create(n)
			r.emit(Op{Kind: OpInsertChild, Node: n.ID, Parent: parent, Index: i})
		}
	case hasExplicitKeys(prev) || hasExplicitKeys(next):
		r.diffKeyed(parent, prev, next)
	default:
		r.diffPositional(parent, prev, next)
	}
}

// diffPositional compares children pairwise by index. No moves are emitted.
func (r *Reconciler) diffPositional(parent NodeID, prev, next []*VNode) {
	common := len(prev)
	if len(next) < common {
		common = len(next)
	}
	for i := len(prev) - 1; i >= common; i-- {
		r.remove(prev[i])
	}
	for i := 0; i < common; i++ {
		r.patch(parent, prev[i], next[i])
	}
	for i := common; i < len(next); i++ {
		r.create(next[i])
		r.emit(Op{Kind: OpInsertChild, Node: next[i].ID, Parent: parent, Index: i})
	}
}

// diffKeyed matches children by key. Unmatched prev nodes are removed first,
// matched pairs are patched in place, then nodes are placed right to left:
// new nodes are inserted and matched nodes outside the longest increasing
// subsequence of their previous positions are moved, each in front of the
// node placed just before it.
func (r *Reconciler) diffKeyed(parent NodeID, prev, next []*VNode) {
	prevIndex := make(map[string]int, len(prev))
	for i, p := range prev {
		if _, dup := prevIndex[p.Key]; !dup {
			prevIndex[p.Key] = i
		}
	}
	used := make([]bool, len(prev))
	sources := make([]int, len(next))
	for j, n := range next {
		sources[j] = -1
		if i, ok := prevIndex[n.Key]; ok && !used[i] {
			used[i] = true
			sources[j] = i
		}
	}

	for i := len(prev) - 1; i >= 0; i-- {
		if !used[i] {
			r.remove(prev[i])
		}
	}

	// cur mirrors the host's child sequence as ops are emitted.
	cur := make([]NodeID, 0, len(next))
	for i, p := range prev {
		if used[i] {
			cur = append(cur, p.ID)
		}
	}

	for j, n := range next {
		if sources[j] < 0 {
			continue
		}
		p := prev[sources[j]]
		old := p.ID
		r.patch(parent, p, n)
		if n.ID != old {
			cur[indexOf(cur, old)] = n.ID
		}
	}

	stay := longestIncreasing(sources)
	var anchor NodeID
	for j := len(next) - 1; j >= 0; j-- {
		n := next[j]
		switch {
		case sources[j] < 0:
			r.create(n)
			at := position(cur, anchor)
			cur = insertAt(cur, at, n.ID)
			r.emit(Op{Kind: OpInsertChild, Node: n.ID, Parent: parent, Before: anchor, Index: at})
		case !stay[j]:
			cur = removeAt(cur, indexOf(cur, n.ID))
			at := position(cur, anchor)
			cur = insertAt(cur, at, n.ID)
			r.emit(Op{Kind: OpMoveNode, Node: n.ID, Parent: parent, Before: anchor, Index: at})
		}
		anchor = n.ID
	}
}

// patch diffs a matched pair. Nodes of a different kind or tag are
// replaced.
func (r *Reconciler) patch(parent NodeID, prev, next *VNode) {
	if prev.Kind != next.Kind || prev.Tag != next.Tag {
		r.create(next)
		r.emit(Op{Kind: OpReplaceNode, Node: next.ID, Old: prev.ID, Parent: parent})
		r.discard(prev)
		return
	}
	next.ID = prev.ID

	switch next.Kind {
	case KindText:
		if prev.Text != next.Text {
			r.emit(Op{Kind: OpSetText, Node: next.ID, Value: next.Text})
		}
	case KindComponent:
		r.res.Updated = append(r.res.Updated, next)
	case KindElement:
		r.diffAttrs(prev, next)
		r.diffContent(prev, next)
	case KindPlaceholder:
	}
}

func (r *Reconciler) diffAttrs(prev, next *VNode) {
	id := next.ID
	for _, k := range sortedKeys(prev.Attrs) {
		if _, ok := next.Attrs[k]; !ok {
			r.emit(Op{Kind: OpRemoveAttribute, Node: id, Name: k})
		}
	}
	for _, k := range sortedKeys(prev.Events) {
		if _, ok := next.Events[k]; !ok {
			r.emit(Op{Kind: OpRemoveAttribute, Node: id, Name: EventAttr(k)})
		}
	}
	for _, k := range sortedKeys(next.Attrs) {
		v := next.Attrs[k]
		if old, ok := prev.Attrs[k]; !ok || old != v {
			r.emit(Op{Kind: OpSetAttribute, Node: id, Name: k, Value: v})
		}
	}
	for _, k := range sortedKeys(next.Events) {
		if _, ok := prev.Events[k]; !ok {
			r.emit(Op{Kind: OpSetAttribute, Node: id, Name: EventAttr(k)})
		}
	}
}

// diffContent diffs an element's children, handling the text-only form in
// which the text lives on the element itself.
func (r *Reconciler) diffContent(prev, next *VNode) {
	id := next.ID
	pt, prevText := prev.TextContent()
	nt, nextText := next.TextContent()
	switch {
	case prevText && nextText:
		if pt != nt {
			r.emit(Op{Kind: OpSetText, Node: id, Value: nt})
		}
	case prevText:
		if pt != "" {
			r.emit(Op{Kind: OpSetText, Node: id, Value: ""})
		}
		r.diffChildren(id, nil, next.Children)
	case nextText:
		for i := len(prev.Children) - 1; i >= 0; i-- {
			r.remove(prev.Children[i])
		}
		if nt != "" {
			r.emit(Op{Kind: OpSetText, Node: id, Value: nt})
		}
	default:
		r.diffChildren(id, prev.Children, next.Children)
	}
}

// create emits the ops building n's subtree, detached.
func (r *Reconciler) create(n *VNode) {
	n.ID = r.alloc()
	switch n.Kind {
	case KindText:
		r.emit(Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindText, Value: n.Text})
	case KindPlaceholder:
		r.emit(Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindPlaceholder})
	case KindComponent:
		r.emit(Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindComponent, Tag: n.Tag})
		r.res.Mounted = append(r.res.Mounted, n)
	case KindElement:
		r.emit(Op{Kind: OpCreateNode, Node: n.ID, NodeKind: KindElement, Tag: n.Tag})
		for _, k := range sortedKeys(n.Attrs) {
			r.emit(Op{Kind: OpSetAttribute, Node: n.ID, Name: k, Value: n.Attrs[k]})
		}
		for _, k := range sortedKeys(n.Events) {
			r.emit(Op{Kind: OpSetAttribute, Node: n.ID, Name: EventAttr(k)})
		}
		if text, ok := n.TextContent(); ok {
			if text != "" {
				r.emit(Op{Kind: OpSetText, Node: n.ID, Value: text})
			}
			return
		}
		for i, c := range n.Children {
			r.create(c)
			r.emit(Op{Kind: OpInsertChild, Node: c.ID, Parent: n.ID, Index: i})
		}
	}
}

func (r *Reconciler) remove(n *VNode) {
	r.emit(Op{Kind: OpRemoveNode, Node: n.ID})
	r.discard(n)
}

// discard records component instances inside a subtree leaving the host.
func (r *Reconciler) discard(n *VNode) {
	n.Walk(func(v *VNode) {
		if v.Kind == KindComponent {
			r.res.Unmounted = append(r.res.Unmounted, v.ID)
		}
	})
}

func indexOf(ids []NodeID, id NodeID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// position returns where a node placed before anchor lands; anchor 0 means
// the end.
func position(ids []NodeID, anchor NodeID) int {
	if anchor == 0 {
		return len(ids)
	}
	return indexOf(ids, anchor)
}

func insertAt(ids []NodeID, at int, id NodeID) []NodeID {
	ids = append(ids, 0)
	copy(ids[at+1:], ids[at:])
	ids[at] = id
	return ids
}

func removeAt(ids []NodeID, at int) []NodeID {
	return append(ids[:at], ids[at+1:]...)
}
