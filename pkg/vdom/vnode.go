package vdom

import "sort"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement     VKind = iota // <div>, <button>, etc.
	KindText                     // Plain text node
	KindPlaceholder              // Stands in for a conditional with no matching branch
	KindComponent                // Container for a child component instance
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindPlaceholder:
		return "Placeholder"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// NodeID identifies a committed node on the host. IDs are assigned by the
// Reconciler when a node is created and carried over to the matching node of
// every later tree.
type NodeID uint64

// RootID is reserved for the mount point handed to the host.
const RootID NodeID = 1

// ComponentTag is the element a component container becomes in HTML
// output. Its name attribute carries the component name.
const ComponentTag = "villain-component"

// EventFunc handles an event delivered to a node.
type EventFunc func(payload any) error

// VNode describes one rendered node. A tree is immutable once built, apart
// from ID which the Reconciler stamps on commit.
type VNode struct {
	Kind VKind
	// Tag is the element tag, or the component name for KindComponent.
	Tag      string
	Text     string
	Attrs    map[string]string
	Events   map[string]EventFunc
	Children []*VNode

	// Key identifies the node among its siblings. KeyExplicit marks keys
	// supplied by the author; a sibling group holding any explicit key is
	// reconciled by key, otherwise by position.
	Key         string
	KeyExplicit bool

	// Props are the evaluated props of a component reference.
	Props map[string]any

	ID NodeID
}

// TextContent returns the text of an element whose only child is a text
// node. Such elements carry their text directly on the host node.
func (v *VNode) TextContent() (string, bool) {
	if v == nil || v.Kind != KindElement || len(v.Children) != 1 || v.Children[0].Kind != KindText {
		return "", false
	}
	return v.Children[0].Text, true
}

// EventNames returns the node's event names, sorted.
func (v *VNode) EventNames() []string {
	return sortedKeys(v.Events)
}

// Walk calls fn for v and each descendant, depth first.
func (v *VNode) Walk(fn func(*VNode)) {
	if v == nil {
		return
	}
	fn(v)
	for _, c := range v.Children {
		c.Walk(fn)
	}
}

// Clone returns a deep copy of v without IDs. Event handlers and prop
// values are shared.
func (v *VNode) Clone() *VNode {
	if v == nil {
		return nil
	}
	out := *v
	out.ID = 0
	if v.Attrs != nil {
		out.Attrs = make(map[string]string, len(v.Attrs))
		for k, a := range v.Attrs {
			out.Attrs[k] = a
		}
	}
	if v.Events != nil {
		out.Events = make(map[string]EventFunc, len(v.Events))
		for k, e := range v.Events {
			out.Events[k] = e
		}
	}
	if v.Props != nil {
		out.Props = make(map[string]any, len(v.Props))
		for k, p := range v.Props {
			out.Props[k] = p
		}
	}
	if v.Children != nil {
		out.Children = make([]*VNode, len(v.Children))
		for i, c := range v.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
