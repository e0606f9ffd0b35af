package vdom

import (
	"fmt"
	"strings"
)

// OpKind is the type of host mutation.
type OpKind uint8

const (
	OpCreateNode      OpKind = 0x01 // Create a detached node
	OpRemoveNode      OpKind = 0x02 // Detach and discard a node and its subtree
	OpReplaceNode     OpKind = 0x03 // Put Node where Old is, discarding Old
	OpSetAttribute    OpKind = 0x04 // Set/update attribute
	OpRemoveAttribute OpKind = 0x05 // Remove attribute
	OpSetText         OpKind = 0x06 // Update text content
	OpMoveNode        OpKind = 0x07 // Move an attached node before a sibling
	OpInsertChild     OpKind = 0x08 // Attach a detached node
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpCreateNode:
		return "CreateNode"
	case OpRemoveNode:
		return "RemoveNode"
	case OpReplaceNode:
		return "ReplaceNode"
	case OpSetAttribute:
		return "SetAttribute"
	case OpRemoveAttribute:
		return "RemoveAttribute"
	case OpSetText:
		return "SetText"
	case OpMoveNode:
		return "MoveNode"
	case OpInsertChild:
		return "InsertChild"
	default:
		return "Unknown"
	}
}

// Op is one host mutation. Ops must be replayed in emission order.
//
// Index is the position Node takes among Parent's children once the op has
// been applied. For MoveNode it is counted with Node already detached.
// Before names the sibling Node is placed in front of, or 0 for the end.
type Op struct {
	Kind     OpKind
	Node     NodeID
	Parent   NodeID
	Before   NodeID
	Old      NodeID
	Index    int
	NodeKind VKind
	Tag      string
	Name     string
	Value    string
}

func (op Op) String() string {
	switch op.Kind {
	case OpCreateNode:
		switch op.NodeKind {
		case KindText:
			return fmt.Sprintf("CreateNode #%d text %q", op.Node, op.Value)
		case KindPlaceholder:
			return fmt.Sprintf("CreateNode #%d placeholder", op.Node)
		case KindComponent:
			return fmt.Sprintf("CreateNode #%d component %s", op.Node, op.Tag)
		}
		return fmt.Sprintf("CreateNode #%d <%s>", op.Node, op.Tag)
	case OpRemoveNode:
		return fmt.Sprintf("RemoveNode #%d", op.Node)
	case OpReplaceNode:
		return fmt.Sprintf("ReplaceNode #%d with #%d", op.Old, op.Node)
	case OpSetAttribute:
		return fmt.Sprintf("SetAttribute #%d %s=%q", op.Node, op.Name, op.Value)
	case OpRemoveAttribute:
		return fmt.Sprintf("RemoveAttribute #%d %s", op.Node, op.Name)
	case OpSetText:
		return fmt.Sprintf("SetText #%d %q", op.Node, op.Value)
	case OpMoveNode:
		return fmt.Sprintf("MoveNode #%d in #%d @%d", op.Node, op.Parent, op.Index)
	case OpInsertChild:
		return fmt.Sprintf("InsertChild #%d in #%d @%d", op.Node, op.Parent, op.Index)
	}
	return "Unknown"
}

// FormatOps renders ops one per line.
func FormatOps(ops []Op) string {
	var b strings.Builder
	for _, op := range ops {
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// EventAttr is the attribute announcing an event listener to the host.
func EventAttr(event string) string {
	return "on:" + event
}
