package host

import (
	"fmt"

	"github.com/vango-dev/villain/pkg/vdom"
)

// Applier replays ops on a Surface.
type Applier struct {
	surface  Surface
	refs     map[vdom.NodeID]NodeRef
	ids      map[NodeRef]vdom.NodeID
	parent   map[vdom.NodeID]vdom.NodeID
	children map[vdom.NodeID]map[vdom.NodeID]struct{}
}

// NewApplier binds an applier to s, mapping vdom.RootID to s.Root().
func NewApplier(s Surface) *Applier {
	a := &Applier{
		surface:  s,
		refs:     make(map[vdom.NodeID]NodeRef),
		ids:      make(map[NodeRef]vdom.NodeID),
		parent:   make(map[vdom.NodeID]vdom.NodeID),
		children: make(map[vdom.NodeID]map[vdom.NodeID]struct{}),
	}
	a.bind(vdom.RootID, s.Root())
	return a
}

// Surface returns the surface the applier drives.
func (a *Applier) Surface() Surface { return a.surface }

func (a *Applier) bind(id vdom.NodeID, ref NodeRef) {
	a.refs[id] = ref
	a.ids[ref] = id
}

// Ref returns the host node for id.
func (a *Applier) Ref(id vdom.NodeID) (NodeRef, bool) {
	r, ok := a.refs[id]
	return r, ok
}

// ID returns the engine ID of a host node.
func (a *Applier) ID(ref NodeRef) (vdom.NodeID, bool) {
	id, ok := a.ids[ref]
	return id, ok
}

// Len returns the number of live nodes, the root included.
func (a *Applier) Len() int { return len(a.refs) }

func (a *Applier) ref(op vdom.Op, id vdom.NodeID) (NodeRef, error) {
	r, ok := a.refs[id]
	if !ok {
		return nil, fmt.Errorf("host: %s: %w #%d", op.Kind, ErrUnknownNode, id)
	}
	return r, nil
}

// Apply replays ops in order. It stops at the first op naming an unknown
// node.
func (a *Applier) Apply(ops []vdom.Op) error {
	for _, op := range ops {
		if err := a.apply(op); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) apply(op vdom.Op) error {
	if op.Kind == vdom.OpCreateNode {
		if _, dup := a.refs[op.Node]; dup {
			return fmt.Errorf("host: CreateNode: node #%d already exists", op.Node)
		}
		a.bind(op.Node, a.surface.Create(op.NodeKind, op.Tag, op.Value))
		return nil
	}
	n, err := a.ref(op, op.Node)
	if err != nil {
		return err
	}
	switch op.Kind {
	case vdom.OpSetAttribute:
		a.surface.SetAttribute(n, op.Name, op.Value)
	case vdom.OpRemoveAttribute:
		a.surface.RemoveAttribute(n, op.Name)
	case vdom.OpSetText:
		a.surface.SetText(n, op.Value)
	case vdom.OpInsertChild, vdom.OpMoveNode:
		p, err := a.ref(op, op.Parent)
		if err != nil {
			return err
		}
		var before NodeRef
		if op.Before != 0 {
			if before, err = a.ref(op, op.Before); err != nil {
				return err
			}
		}
		a.surface.Insert(p, n, before)
		a.attach(op.Parent, op.Node)
	case vdom.OpReplaceNode:
		old, err := a.ref(op, op.Old)
		if err != nil {
			return err
		}
		parent, ok := a.parent[op.Old]
		if !ok {
			return fmt.Errorf("host: ReplaceNode: node #%d is detached", op.Old)
		}
		a.surface.Insert(a.refs[parent], n, old)
		a.attach(parent, op.Node)
		a.surface.Remove(old)
		a.forget(op.Old)
	case vdom.OpRemoveNode:
		a.surface.Remove(n)
		a.forget(op.Node)
	default:
		return fmt.Errorf("host: unsupported op %s", op.Kind)
	}
	return nil
}

func (a *Applier) attach(parent, child vdom.NodeID) {
	if old, ok := a.parent[child]; ok {
		delete(a.children[old], child)
	}
	a.parent[child] = parent
	kids := a.children[parent]
	if kids == nil {
		kids = make(map[vdom.NodeID]struct{})
		a.children[parent] = kids
	}
	kids[child] = struct{}{}
}

// forget drops id and its descendants from the maps.
func (a *Applier) forget(id vdom.NodeID) {
	for c := range a.children[id] {
		a.forget(c)
	}
	delete(a.children, id)
	if p, ok := a.parent[id]; ok {
		delete(a.children[p], id)
		delete(a.parent, id)
	}
	if ref, ok := a.refs[id]; ok {
		delete(a.ids, ref)
		delete(a.refs, id)
	}
}
