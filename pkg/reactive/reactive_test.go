package reactive

import (
	"errors"
	"testing"
)

func TestSignalGetSet(t *testing.T) {
	rt := NewRuntime()
	g := rt.NewGraph("test", nil)
	s := g.Signal(1)

	if got := s.Get(); got != 1 {
		t.Errorf("Get() = %v, want 1", got)
	}
	s.Set(2)
	if got := s.Peek(); got != 2 {
		t.Errorf("Peek() = %v, want 2", got)
	}
	s.Update(func(v any) any { return v.(int) * 10 })
	if got := s.Peek(); got != 20 {
		t.Errorf("after Update = %v, want 20", got)
	}
}

func TestRenderTrackingMarksDirty(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	count := g.Signal(0)
	other := g.Signal("x")

	if err := g.Track(func() error { _ = count.Get(); return nil }); err != nil {
		t.Fatal(err)
	}

	count.Set(1)
	if dirty != 1 {
		t.Errorf("dirty = %d after tracked write, want 1", dirty)
	}
	other.Set("y")
	if dirty != 1 {
		t.Errorf("dirty = %d after untracked write, want 1", dirty)
	}
}

func TestSetEqualValueIsNoop(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	s := g.Signal([]int{1, 2})
	_ = g.Track(func() error { s.Get(); return nil })

	s.Set([]int{1, 2})
	if dirty != 0 {
		t.Errorf("dirty = %d, want 0 for equal write", dirty)
	}
	s.Set([]int{1, 2, 3})
	if dirty != 1 {
		t.Errorf("dirty = %d, want 1", dirty)
	}
}

func TestWithEqual(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	s := g.Signal(1, WithEqual(func(a, b any) bool { return false }))
	_ = g.Track(func() error { s.Get(); return nil })

	s.Set(1)
	if dirty != 1 {
		t.Errorf("dirty = %d, want 1 with never-equal comparison", dirty)
	}
}

func TestComputedCachesUntilDependencyChanges(t *testing.T) {
	rt := NewRuntime()
	g := rt.NewGraph("test", nil)
	n := g.Signal(2)
	runs := 0
	sq := g.Computed(func() (any, error) {
		runs++
		v := n.Get().(int)
		return v * v, nil
	})

	for i := 0; i < 3; i++ {
		v, err := sq.Get()
		if err != nil || v != 4 {
			t.Fatalf("Get() = %v, %v; want 4", v, err)
		}
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}

	n.Set(3)
	if sq.Valid() {
		t.Error("computed still valid after dependency write")
	}
	if v, _ := sq.Get(); v != 9 {
		t.Errorf("Get() = %v, want 9", v)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestComputedChainPropagatesToRender(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	base := g.Signal(1)
	double := g.Computed(func() (any, error) { return base.Get().(int) * 2, nil })
	quad := g.Computed(func() (any, error) {
		v, err := double.Get()
		if err != nil {
			return nil, err
		}
		return v.(int) * 2, nil
	})

	var seen any
	_ = g.Track(func() error {
		v, err := quad.Get()
		seen = v
		return err
	})
	if seen != 4 {
		t.Fatalf("quad = %v, want 4", seen)
	}

	base.Set(5)
	if dirty != 1 {
		t.Errorf("dirty = %d, want 1", dirty)
	}
	if v, _ := quad.Peek(); v != 20 {
		t.Errorf("quad = %v, want 20", v)
	}
}

// A computed that reads a different branch after a write must drop the edge
// to the branch it no longer reads.
func TestConditionalDependencies(t *testing.T) {
	rt := NewRuntime()
	g := rt.NewGraph("test", nil)
	flag := g.Signal(true)
	a := g.Signal("a")
	b := g.Signal("b")
	runs := 0
	pick := g.Computed(func() (any, error) {
		runs++
		if flag.Get().(bool) {
			return a.Get(), nil
		}
		return b.Get(), nil
	})

	mustGet := func(want any) {
		t.Helper()
		v, err := pick.Get()
		if err != nil || v != want {
			t.Fatalf("pick = %v, %v; want %v", v, err, want)
		}
	}

	mustGet("a")
	b.Set("b2")
	if !pick.Valid() {
		t.Fatal("write to unread branch invalidated the computed")
	}

	flag.Set(false)
	mustGet("b2")
	a.Set("a2")
	if !pick.Valid() {
		t.Error("write to dropped dependency invalidated the computed")
	}
	b.Set("b3")
	if pick.Valid() {
		t.Error("write to current dependency did not invalidate")
	}

	flag.Set(true)
	mustGet("a2")
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
}

func TestTrackReplacesRenderEdges(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	show := g.Signal(true)
	detail := g.Signal("d")

	render := func() error {
		if show.Get().(bool) {
			detail.Get()
		}
		return nil
	}
	_ = g.Track(render)
	if g.RenderDeps() != 2 {
		t.Fatalf("render deps = %d, want 2", g.RenderDeps())
	}

	show.Set(false)
	_ = g.Track(render)
	dirty = 0
	detail.Set("changed")
	if dirty != 0 {
		t.Errorf("dirty = %d, want 0 after the render stopped reading detail", dirty)
	}
	if g.RenderDeps() != 1 {
		t.Errorf("render deps = %d, want 1", g.RenderDeps())
	}
}

func TestCycleDetection(t *testing.T) {
	rt := NewRuntime()
	g := rt.NewGraph("Loop", nil)
	var a, b *Computed
	a = g.Computed(func() (any, error) { return b.Get() }, WithName("a"))
	b = g.Computed(func() (any, error) { return a.Get() }, WithName("b"))

	_, err := a.Get()
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("error = %v, want ErrCycleDetected", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) || ce.Graph != "Loop" {
		t.Errorf("error = %#v, want *CycleError for graph Loop", err)
	}

	other := g.Computed(func() (any, error) { return 1, nil })
	if _, err := other.Get(); err != nil {
		t.Errorf("independent computed error = %v", err)
	}
}

func TestSelfReferenceIsCycle(t *testing.T) {
	rt := NewRuntime()
	g := rt.NewGraph("test", nil)
	var c *Computed
	c = g.Computed(func() (any, error) {
		v, err := c.Get()
		return v, err
	})
	if _, err := c.Get(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("error = %v, want ErrCycleDetected", err)
	}
}

func TestBatchNotifiesOnce(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	first := g.Signal("")
	last := g.Signal("")
	_ = g.Track(func() error { first.Get(); last.Get(); return nil })

	rt.Batch(func() {
		first.Set("Ada")
		rt.Batch(func() { last.Set("Lovelace") })
		if dirty != 0 {
			t.Errorf("dirty = %d inside batch, want 0", dirty)
		}
	})
	if dirty != 1 {
		t.Errorf("dirty = %d, want 1", dirty)
	}
}

func TestUntracked(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g := rt.NewGraph("test", func() { dirty++ })
	s := g.Signal(0)
	_ = g.Track(func() error {
		rt.Untracked(func() {
			if rt.Tracking() {
				t.Error("Tracking() = true inside Untracked")
			}
			s.Get()
		})
		return nil
	})
	s.Set(1)
	if dirty != 0 {
		t.Errorf("dirty = %d, want 0", dirty)
	}
}

func TestReleaseFreesCells(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	g1 := rt.NewGraph("one", func() { dirty++ })
	g2 := rt.NewGraph("two", nil)
	s := g1.Signal(1)
	g1.Computed(func() (any, error) { return s.Get(), nil })
	g2.Signal("kept")
	_ = g1.Track(func() error { s.Get(); return nil })

	if rt.LiveCells() != 3 {
		t.Fatalf("LiveCells() = %d, want 3", rt.LiveCells())
	}
	g1.Release()
	if rt.LiveCells() != 1 {
		t.Errorf("LiveCells() = %d after release, want 1", rt.LiveCells())
	}

	s.Set(2)
	if dirty != 0 {
		t.Errorf("write after release marked dirty")
	}
	if s.Get() != nil {
		t.Errorf("read after release = %v, want nil", s.Get())
	}
	if err := g1.Track(func() error { return nil }); !errors.Is(err, ErrReleased) {
		t.Errorf("Track after release = %v, want ErrReleased", err)
	}
	g1.Release()
	if rt.LiveCells() != 1 {
		t.Errorf("double release changed LiveCells to %d", rt.LiveCells())
	}
}

func TestReadsAcrossGraphsAreNotTracked(t *testing.T) {
	rt := NewRuntime()
	dirty := 0
	parent := rt.NewGraph("parent", func() { dirty++ })
	child := rt.NewGraph("child", nil)
	prop := child.Signal("p")

	_ = parent.Track(func() error { prop.Get(); return nil })
	prop.Set("q")
	if dirty != 0 {
		t.Errorf("dirty = %d, want 0", dirty)
	}
}
