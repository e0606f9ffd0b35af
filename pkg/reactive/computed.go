package reactive

// Computed is a handle to a cached derivation. It computes lazily on first
// read and again on the first read after a dependency changed.
type Computed struct {
	g    *Graph
	slot int32
}

// Computed creates a computed cell. fn does not run until the first read.
func (g *Graph) Computed(fn func() (any, error), opts ...Option) *Computed {
	c := cell{kind: kindComputed, compute: fn}
	for _, o := range opts {
		o(&c)
	}
	return &Computed{g: g, slot: g.alloc(c)}
}

// Get returns the cached value, recomputing it if invalid, and records the
// dependency. Reading a computed from inside its own computation returns a
// *CycleError. Errors returned by the computation are cached alongside the
// value until a dependency changes.
func (c *Computed) Get() (any, error) {
	if c.g.cell(c.slot) == nil {
		return nil, nil
	}
	c.g.track(c.slot)
	return c.value()
}

// Peek returns the value without subscribing. It still recomputes an
// invalid value.
func (c *Computed) Peek() (any, error) {
	if c.g.cell(c.slot) == nil {
		return nil, nil
	}
	return c.value()
}

// Read implements expr.Readable.
func (c *Computed) Read() (any, error) { return c.Get() }

// Valid reports whether the cached value is current.
func (c *Computed) Valid() bool {
	cl := c.g.cell(c.slot)
	return cl != nil && cl.valid
}

func (c *Computed) value() (any, error) {
	cl := c.g.cell(c.slot)
	if cl.computing {
		return nil, &CycleError{Graph: c.g.name, Cell: cl.name}
	}
	if !cl.valid {
		c.recompute()
		cl = c.g.cell(c.slot)
		if cl == nil {
			return nil, nil
		}
	}
	return cl.value, cl.err
}

// recompute drops the old edges, then runs the computation in a fresh
// frame so that its reads become the new edges.
func (c *Computed) recompute() {
	g := c.g
	cl := g.cell(c.slot)
	for _, d := range cl.deps {
		g.unsubscribe(d, c.slot)
	}
	cl.deps = nil
	cl.computing = true
	fn := cl.compute

	f := g.rt.push(g, c.slot)
	v, err := func() (any, error) {
		defer func() {
			g.rt.pop()
			if cl := g.cell(c.slot); cl != nil {
				cl.computing = false
			}
		}()
		return fn()
	}()

	// The arena may have grown or been released during fn.
	cl = g.cell(c.slot)
	if cl == nil {
		return
	}
	cl.deps = f.deps
	cl.value, cl.err, cl.valid = v, err, true
}
