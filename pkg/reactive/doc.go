// Package reactive provides the dependency graph behind component state.
//
// Dependencies are tracked automatically at runtime: reading a cell while a
// tracking frame is active records an edge from the cell to the frame's
// reader. Writing a signal walks those edges, invalidating computed values
// and marking the owning component dirty.
//
// # Core Types
//
// A Runtime holds the tracking frame stack. Each component instance owns a
// Graph: an arena of cells released as a unit on unmount.
//
//	rt := reactive.NewRuntime()
//	g := rt.NewGraph("Counter", func() { /* schedule a render */ })
//
// Signal is a mutable cell:
//
//	count := g.Signal(0)
//	count.Get()     // tracked read
//	count.Set(5)    // write, notifies subscribers if the value changed
//
// Computed is a lazily evaluated, cached derivation:
//
//	doubled := g.Computed(func() (any, error) {
//	    return count.Get().(int) * 2, nil
//	})
//	v, err := doubled.Get()
//
// Render tracking uses Graph.Track. Every call drops the edges recorded by
// the previous one, so a render depends on exactly what it read last time.
//
// # Batching
//
// Runtime.Batch defers dirty notifications until the outermost batch ends,
// notifying each graph once.
//
// # Thread Safety
//
// A Runtime and its graphs are confined to one goroutine, normally the
// scheduler loop. Work from other goroutines must be posted to that loop.
package reactive
