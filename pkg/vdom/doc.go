// Package vdom holds the node trees produced by rendering and the
// reconciler that turns two trees into host operations.
//
// # Trees
//
// A VNode is an element, a text node, a placeholder standing in for an
// unmatched conditional, or a component container. Trees are built by the
// lowered template of a component, or by hand with El, Text and friends:
//
//	El("ul", A("class", "todos"),
//	    El("li", Key(1), On("click", toggle), "Write docs"),
//	)
//
// # Reconciliation
//
// Reconciler.Reconcile compares a previous and a next sibling group and
// returns the Op list that updates a host holding the previous group.
// Children with explicit keys are matched by key and moved with the
// minimum number of MoveNode ops, using the longest increasing subsequence
// of their previous positions. Other children are compared by position.
//
// Ops address nodes by NodeID. IDs are allocated by the reconciler and
// stay stable while a node survives, which is what lets a remote host
// report events by ID.
package vdom
