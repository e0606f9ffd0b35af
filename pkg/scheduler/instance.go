package scheduler

import (
	"sort"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/reactive"
	"github.com/vango-dev/villain/pkg/vdom"
)

// State is the lifecycle state of an Instance.
type State uint8

const (
	Clean     State = iota // Committed tree reflects current state
	Dirty                  // Queued for a render
	Rendering              // Render procedure running
	Unmounted              // Torn down; terminal
)

func (s State) String() string {
	switch s {
	case Clean:
		return "Clean"
	case Dirty:
		return "Dirty"
	case Rendering:
		return "Rendering"
	case Unmounted:
		return "Unmounted"
	default:
		return "Unknown"
	}
}

// InstanceID identifies a mounted component instance.
type InstanceID uint64

// Instance is a mounted component. It owns its reactive graph, its
// committed tree and its child instances.
type Instance struct {
	id     InstanceID
	def    *compiler.Definition
	parent *Instance
	// node is the host node the instance renders into: vdom.RootID for the
	// root, the component container for children.
	node  vdom.NodeID
	depth int
	state State

	queued   bool
	deferred bool
	index    int
	seq      uint64

	graph *reactive.Graph
	ctx   *compiler.Context
	props map[string]*reactive.Signal
	// listeners are the parent's handlers for events this instance emits.
	listeners map[string]vdom.EventFunc

	tree     []*vdom.VNode
	handlers map[vdom.NodeID]map[string]vdom.EventFunc
	children map[vdom.NodeID]*Instance
	renders  int
}

// ID returns the instance ID.
func (i *Instance) ID() InstanceID { return i.id }

// Name returns the component name.
func (i *Instance) Name() string { return i.def.Name }

// State returns the lifecycle state.
func (i *Instance) State() State { return i.state }

// Node returns the host node the instance renders into.
func (i *Instance) Node() vdom.NodeID { return i.node }

// Parent returns the parent instance, or nil for the root.
func (i *Instance) Parent() *Instance { return i.parent }

// Renders returns how many renders have been committed.
func (i *Instance) Renders() int { return i.renders }

// Tree returns the committed tree. Callers must not modify it.
func (i *Instance) Tree() []*vdom.VNode { return i.tree }

// Context returns the instance's render context. It is nil once unmounted.
func (i *Instance) Context() *compiler.Context { return i.ctx }

// Children returns the child instances in container order.
func (i *Instance) Children() []*Instance {
	ids := make([]vdom.NodeID, 0, len(i.children))
	for id := range i.children {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	out := make([]*Instance, len(ids))
	for n, id := range ids {
		out[n] = i.children[id]
	}
	return out
}

// queue orders dirty instances parents first, then by enqueue order. It
// implements container/heap.
type queue []*Instance

func (q queue) Len() int { return len(q) }

func (q queue) Less(a, b int) bool {
	if q[a].depth != q[b].depth {
		return q[a].depth < q[b].depth
	}
	return q[a].seq < q[b].seq
}

func (q queue) Swap(a, b int) {
	q[a], q[b] = q[b], q[a]
	q[a].index = a
	q[b].index = b
}

func (q *queue) Push(x any) {
	inst := x.(*Instance)
	inst.index = len(*q)
	*q = append(*q, inst)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	inst := old[n-1]
	old[n-1] = nil
	inst.index = -1
	*q = old[:n-1]
	return inst
}
