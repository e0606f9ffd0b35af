package reactive

// frame is one entry of the tracking stack. A nil graph disables tracking.
type frame struct {
	g      *Graph
	reader int32
	deps   []int32
}

// Runtime holds the tracking frame stack shared by a set of graphs.
type Runtime struct {
	frames []*frame

	// live counts cells held by unreleased graphs.
	live int

	batchDepth int
	pending    []*Graph
}

// NewRuntime creates an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// LiveCells returns the number of cells held by graphs that have not been
// released.
func (rt *Runtime) LiveCells() int {
	return rt.live
}

func (rt *Runtime) push(g *Graph, reader int32) *frame {
	f := &frame{g: g, reader: reader}
	rt.frames = append(rt.frames, f)
	return f
}

func (rt *Runtime) pop() {
	rt.frames[len(rt.frames)-1] = nil
	rt.frames = rt.frames[:len(rt.frames)-1]
}

func (rt *Runtime) current() *frame {
	if len(rt.frames) == 0 {
		return nil
	}
	return rt.frames[len(rt.frames)-1]
}

// Tracking reports whether a read right now would record a dependency.
func (rt *Runtime) Tracking() bool {
	f := rt.current()
	return f != nil && f.g != nil
}

// Untracked runs fn with dependency tracking disabled. Reads inside fn do
// not subscribe the enclosing reader.
func (rt *Runtime) Untracked(fn func()) {
	rt.push(nil, 0)
	defer rt.pop()
	fn()
}

// Batch groups writes so that each affected graph is notified once, when
// the outermost batch completes. Batches nest.
//
// Example:
//
//	rt.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
//	// onDirty fires once for the owning graph
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 {
			rt.flush()
		}
	}()
	fn()
}

func (rt *Runtime) flush() {
	pending := rt.pending
	rt.pending = nil
	for _, g := range pending {
		g.queued = false
		if !g.released && g.onDirty != nil {
			g.onDirty()
		}
	}
}
