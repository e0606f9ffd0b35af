package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMountOpsReplaysCreation(t *testing.T) {
	r := NewReconciler()
	tree := []*VNode{
		El("ul", A("class", "todos"),
			El("li", Key("a"), On("click", nil), "Write docs"),
			El("li", Key("b"), Text("Ship"), El("b", "!")),
		),
		Placeholder("p"),
		Text("tail"),
	}
	res := r.Reconcile(RootID, nil, tree)
	if diff := cmp.Diff(res.Ops, MountOps(RootID, tree)); diff != "" {
		t.Errorf("mount ops (-reconcile +mount):\n%s", diff)
	}
}

func TestMountOpsComposesComponents(t *testing.T) {
	r := NewReconciler()
	tree := []*VNode{El("main", Component("Counter", nil))}
	r.Reconcile(RootID, nil, tree)
	counter := tree[0].Children[0]
	inner := []*VNode{El("button", "1")}
	r.Reconcile(counter.ID, nil, inner)
	counter.Children = inner

	want := []string{
		`CreateNode #2 <main>`,
		`CreateNode #3 component Counter`,
		`CreateNode #4 <button>`,
		`SetText #4 "1"`,
		`InsertChild #4 in #3 @0`,
		`InsertChild #3 in #2 @0`,
		`InsertChild #2 in #1 @0`,
	}
	if diff := cmp.Diff(want, opLines(&Result{Ops: MountOps(RootID, tree)})); diff != "" {
		t.Errorf("mount ops (-want +got):\n%s", diff)
	}
}
