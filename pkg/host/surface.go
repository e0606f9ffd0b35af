// Package host applies reconciler output to a concrete node surface.
//
// The engine never touches host nodes itself. It emits vdom.Op values that
// refer to nodes by NodeID; an Applier replays them against a Surface,
// keeping the mapping between engine IDs and host handles in both
// directions so that host events can be routed back to listeners.
package host

import (
	"errors"

	"github.com/vango-dev/villain/pkg/vdom"
)

// ErrUnknownNode is returned when an op refers to an ID the applier has
// never created or has already removed.
var ErrUnknownNode = errors.New("unknown node")

// NodeRef is an opaque host node handle. Refs must be comparable.
type NodeRef any

// Surface is the host node API the Applier drives.
type Surface interface {
	// Root returns the mount point, addressed as vdom.RootID.
	Root() NodeRef
	// Create makes a detached node. tag holds the element tag or the
	// component name; text the initial text of a text node.
	Create(kind vdom.VKind, tag, text string) NodeRef
	SetAttribute(n NodeRef, name, value string)
	RemoveAttribute(n NodeRef, name string)
	// SetText sets the text of a text node, or replaces the content of an
	// element with a single text run.
	SetText(n NodeRef, text string)
	// Insert attaches child to parent in front of before, or at the end
	// when before is nil. An attached child is moved.
	Insert(parent, child, before NodeRef)
	// Remove detaches n and its subtree.
	Remove(n NodeRef)
}
