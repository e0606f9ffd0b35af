package reactive

// renderReader is the subscriber slot standing for the graph's render.
const renderReader int32 = -1

type cellKind uint8

const (
	kindSignal cellKind = iota
	kindComputed
)

// cell is one arena entry. Signals use value; computed cells also use
// compute, err, valid, computing and deps.
type cell struct {
	kind  cellKind
	name  string
	value any
	equal func(a, b any) bool

	compute   func() (any, error)
	err       error
	valid     bool
	computing bool
	deps      []int32

	subs []int32
}

// Graph is the arena of cells owned by one component instance. Edges are
// stored as arena indices, so releasing the graph frees the whole instance
// state at once.
type Graph struct {
	rt         *Runtime
	name       string
	cells      []cell
	renderDeps []int32
	onDirty    func()
	released   bool
	queued     bool
}

// NewGraph creates a graph. onDirty runs when a cell the last tracked
// render read has changed; it may be nil.
func (rt *Runtime) NewGraph(name string, onDirty func()) *Graph {
	return &Graph{rt: rt, name: name, onDirty: onDirty}
}

// Name returns the name given at creation.
func (g *Graph) Name() string { return g.name }

// Len returns the number of cells in the graph.
func (g *Graph) Len() int { return len(g.cells) }

// Released reports whether Release has been called.
func (g *Graph) Released() bool { return g.released }

func (g *Graph) alloc(c cell) int32 {
	g.cells = append(g.cells, c)
	g.rt.live++
	return int32(len(g.cells) - 1)
}

// Track runs fn as the graph's render. Edges recorded by the previous Track
// are dropped first; reads inside fn become the new render dependencies.
func (g *Graph) Track(fn func() error) error {
	if g.released {
		return ErrReleased
	}
	for _, d := range g.renderDeps {
		g.unsubscribe(d, renderReader)
	}
	g.renderDeps = nil

	f := g.rt.push(g, renderReader)
	defer func() {
		g.rt.pop()
		if !g.released {
			g.renderDeps = f.deps
		}
	}()
	return fn()
}

// RenderDeps returns how many cells the last tracked render read.
func (g *Graph) RenderDeps() int { return len(g.renderDeps) }

// Release frees every cell. Later reads return nil and later writes are
// no-ops; the dirty hook is never called again.
func (g *Graph) Release() {
	if g.released {
		return
	}
	g.released = true
	g.rt.live -= len(g.cells)
	g.cells = nil
	g.renderDeps = nil
	g.onDirty = nil
}

func (g *Graph) cell(slot int32) *cell {
	if g == nil || g.released || slot < 0 || int(slot) >= len(g.cells) {
		return nil
	}
	return &g.cells[slot]
}

// track records a read of slot against the current frame.
func (g *Graph) track(slot int32) {
	f := g.rt.current()
	if f == nil || f.g != g {
		return
	}
	for _, d := range f.deps {
		if d == slot {
			return
		}
	}
	f.deps = append(f.deps, slot)
	c := &g.cells[slot]
	c.subs = append(c.subs, f.reader)
}

func (g *Graph) unsubscribe(slot, reader int32) {
	c := g.cell(slot)
	if c == nil {
		return
	}
	for i, s := range c.subs {
		if s == reader {
			c.subs[i] = c.subs[len(c.subs)-1]
			c.subs = c.subs[:len(c.subs)-1]
			return
		}
	}
}

// notify propagates a change of slot to its subscribers.
func (g *Graph) notify(slot int32) {
	c := g.cell(slot)
	if c == nil {
		return
	}
	subs := make([]int32, len(c.subs))
	copy(subs, c.subs)
	for _, s := range subs {
		if s == renderReader {
			g.markDirty()
			continue
		}
		sub := g.cell(s)
		if sub != nil && sub.valid {
			sub.valid = false
			g.notify(s)
		}
	}
}

func (g *Graph) markDirty() {
	if g.released || g.onDirty == nil {
		return
	}
	if g.rt.batchDepth > 0 {
		if !g.queued {
			g.queued = true
			g.rt.pending = append(g.rt.pending, g)
		}
		return
	}
	g.onDirty()
}
