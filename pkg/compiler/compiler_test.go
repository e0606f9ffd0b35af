package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/reactive"
	"github.com/vango-dev/villain/pkg/template"
	"github.com/vango-dev/villain/pkg/vdom"
)

// outline renders nodes as compact markup for comparisons.
func outline(nodes []*vdom.VNode) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case vdom.KindText:
			b.WriteString(n.Text)
		case vdom.KindPlaceholder:
			b.WriteString("<!---->")
		case vdom.KindComponent:
			b.WriteString("<" + n.Tag)
			keys := make([]string, 0, len(n.Props))
			for k := range n.Props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%v", k, n.Props[k])
			}
			for _, e := range n.EventNames() {
				b.WriteString(" @" + e)
			}
			b.WriteString("/>")
		case vdom.KindElement:
			b.WriteString("<" + n.Tag)
			keys := make([]string, 0, len(n.Attrs))
			for k := range n.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%q", k, n.Attrs[k])
			}
			for _, e := range n.EventNames() {
				b.WriteString(" @" + e)
			}
			b.WriteString(">" + outline(n.Children) + "</" + n.Tag + ">")
		}
	}
	return b.String()
}

type fixture struct {
	def   *Definition
	ctx   *Context
	rt    *reactive.Runtime
	graph *reactive.Graph
}

func newFixture(t *testing.T, src string, setup Setup) *fixture {
	t.Helper()
	reg := NewRegistry()
	for _, name := range []string{"Counter", "TodoItem"} {
		if _, err := reg.Declare(name); err != nil {
			t.Fatal(err)
		}
	}
	def, err := Compile("Test", src, reg, Options{Setup: setup})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	rt := reactive.NewRuntime()
	g := rt.NewGraph("Test", nil)
	ctx := NewContext(g, nil, nil)
	if setup != nil {
		if err := setup(ctx); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	return &fixture{def: def, ctx: ctx, rt: rt, graph: g}
}

func (f *fixture) render(t *testing.T) *Output {
	t.Helper()
	out, err := f.def.Render.Render(f.ctx.Scope())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func (f *fixture) signal(t *testing.T, name string) *reactive.Signal {
	t.Helper()
	v, ok := f.ctx.Scope().Lookup(name)
	if !ok {
		t.Fatalf("no binding %s", name)
	}
	s, ok := v.(*reactive.Signal)
	if !ok {
		t.Fatalf("%s is %T, not a signal", name, v)
	}
	return s
}

func TestRenderOutline(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		state map[string]any
		want  string
	}{
		{
			name:  "interpolation",
			src:   `<p>{{ count }}</p>`,
			state: map[string]any{"count": 0},
			want:  `<p>0</p>`,
		},
		{
			name:  "mixed text",
			src:   `<p>Hello, {{ name }}!</p>`,
			state: map[string]any{"name": "Ada"},
			want:  `<p>Hello, Ada!</p>`,
		},
		{
			name:  "conditional else-if",
			src:   `<b v-if="n > 1">many</b><i v-else-if="n == 1">one</i><u v-else>none</u>`,
			state: map[string]any{"n": 1},
			want:  `<i>one</i>`,
		},
		{
			name:  "conditional placeholder",
			src:   `<div><b v-if="show">x</b></div>`,
			state: map[string]any{"show": false},
			want:  `<div><!----></div>`,
		},
		{
			name:  "loop with index",
			src:   `<ul><li v-for="(x, i) in items">{{ i }}:{{ x }}</li></ul>`,
			state: map[string]any{"items": []any{"a", "b"}},
			want:  `<ul><li>0:a</li><li>1:b</li></ul>`,
		},
		{
			name:  "loop over map",
			src:   `<li v-for="(v, k) in m">{{ k }}={{ v }}</li>`,
			state: map[string]any{"m": map[string]any{"b": 2, "a": 1}},
			want:  `<li>a=1</li><li>b=2</li>`,
		},
		{
			name: "loop range",
			src:  `<i v-for="n in 3">{{ n }}</i>`,
			want: `<i>1</i><i>2</i><i>3</i>`,
		},
		{
			name:  "loop filter",
			src:   `<li v-for="x in items" v-if="x != 'b'">{{ x }}</li>`,
			state: map[string]any{"items": []any{"a", "b", "c"}},
			want:  `<li>a</li><li>c</li>`,
		},
		{
			name:  "template fragment",
			src:   `<template v-for="x in items"><dt>{{ x }}</dt><dd>-</dd></template>`,
			state: map[string]any{"items": []any{"k"}},
			want:  `<dt>k</dt><dd>-</dd>`,
		},
		{
			name:  "bound attributes",
			src:   `<button class="btn" :class="{active: on, off: !on}" :disabled="!on" :title="label" :data-x="missing_ok"></button>`,
			state: map[string]any{"on": true, "label": nil, "missing_ok": 3},
			want:  `<button class="btn active" data-x="3"></button>`,
		},
		{
			name:  "boolean attribute true",
			src:   `<input :disabled="on" :aria-hidden="on">`,
			state: map[string]any{"on": true},
			want:  `<input aria-hidden="true" disabled=""></input>`,
		},
		{
			name:  "style map",
			src:   `<p :style="{color: c, width: w}"></p>`,
			state: map[string]any{"c": "red", "w": nil},
			want:  `<p style="color: red;"></p>`,
		},
		{
			name:  "component props",
			src:   `<Counter label="hits" :start="n + 1" @done="n = 0"/>`,
			state: map[string]any{"n": 1},
			want:  `<Counter label=hits start=2 @done/>`,
		},
		{
			name:  "events",
			src:   `<a @click="n += 1" @mouseover="n">x</a>`,
			state: map[string]any{"n": 1},
			want:  `<a @click @mouseover>x</a>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.src, StateSetup(tt.state))
			out := f.render(t)
			if len(out.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", out.Errors)
			}
			if got := outline(out.Nodes); got != tt.want {
				t.Errorf("render =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestRenderFollowsState(t *testing.T) {
	f := newFixture(t, `<p>{{ count }}</p>`, StateSetup(map[string]any{"count": 0}))
	if got := outline(f.render(t).Nodes); got != "<p>0</p>" {
		t.Fatalf("first render = %s", got)
	}
	f.signal(t, "count").Set(1)
	if got := outline(f.render(t).Nodes); got != "<p>1</p>" {
		t.Errorf("second render = %s", got)
	}
}

func TestRenderIsTracked(t *testing.T) {
	dirty := 0
	rt := reactive.NewRuntime()
	g := rt.NewGraph("Test", func() { dirty++ })
	ctx := NewContext(g, nil, nil)
	if err := StateSetup(map[string]any{"a": 1, "b": 2})(ctx); err != nil {
		t.Fatal(err)
	}
	def, err := Compile("Test", `<p v-if="a > 0">{{ b }}</p>`, NewRegistry(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	err = g.Track(func() error {
		_, err := def.Render.Render(ctx.Scope())
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.RenderDeps() != 2 {
		t.Errorf("render deps = %d, want 2", g.RenderDeps())
	}
	b, _ := ctx.Scope().Lookup("b")
	b.(*reactive.Signal).Set(3)
	if dirty != 1 {
		t.Errorf("dirty = %d after write, want 1", dirty)
	}
}

func TestKeys(t *testing.T) {
	src := `<ul><li v-for="x in items" :key="x.id">{{ x.id }}</li></ul><ol><li v-for="x in items">{{ x.id }}</li></ol>`
	items := []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}
	f := newFixture(t, src, StateSetup(map[string]any{"items": items}))
	out := f.render(t)

	keyed := out.Nodes[0].Children
	positional := out.Nodes[1].Children
	if !keyed[0].KeyExplicit || !keyed[1].KeyExplicit {
		t.Errorf("keyed items not marked explicit")
	}
	if keyed[0].Key == keyed[1].Key {
		t.Errorf("keyed items share key %q", keyed[0].Key)
	}
	if positional[0].KeyExplicit {
		t.Errorf("positional item marked explicit")
	}

	// Keys are stable across renders and follow the item, not its index.
	f.signal(t, "items").Set([]any{items[1], items[0]})
	again := f.render(t).Nodes[0].Children
	if again[0].Key != keyed[1].Key || again[1].Key != keyed[0].Key {
		t.Errorf("keys after reorder = %q, %q; want %q, %q", again[0].Key, again[1].Key, keyed[1].Key, keyed[0].Key)
	}
}

func TestPlaceholderKeyIsStable(t *testing.T) {
	f := newFixture(t, `<b v-if="on">x</b>`, StateSetup(map[string]any{"on": false}))
	first := f.render(t).Nodes[0]
	second := f.render(t).Nodes[0]
	if first.Kind != vdom.KindPlaceholder || first.Key != second.Key {
		t.Errorf("placeholder keys %q / %q", first.Key, second.Key)
	}
}

func TestEvalErrorsAreContained(t *testing.T) {
	f := newFixture(t, "<p>{{ missing }}</p>\n<b :title=\"1 / 0\">{{ 1 + 1 }}</b>", nil)
	out := f.render(t)
	if got, want := outline(out.Nodes), "<p></p><b>2</b>"; got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
	if len(out.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", out.Errors)
	}
	if !errors.Is(out.Errors[0], expr.ErrUndefined) {
		t.Errorf("first error = %v, want ErrUndefined", out.Errors[0])
	}
	var ne *NodeError
	if !errors.As(out.Errors[1], &ne) || ne.Pos.Line != 2 {
		t.Errorf("second error = %v, want a NodeError on line 2", out.Errors[1])
	}
	if !errors.Is(out.Errors[1], expr.ErrDivByZero) {
		t.Errorf("second error = %v, want ErrDivByZero", out.Errors[1])
	}
}

func TestLoopOverNonIterable(t *testing.T) {
	f := newFixture(t, `<i v-for="x in flag">{{ x }}</i>`, StateSetup(map[string]any{"flag": true}))
	out := f.render(t)
	if len(out.Nodes) != 0 || len(out.Errors) != 1 || !errors.Is(out.Errors[0], expr.ErrType) {
		t.Errorf("nodes = %d, errors = %v", len(out.Nodes), out.Errors)
	}
}

func TestCycleAbortsRender(t *testing.T) {
	setup := State{Computed: map[string]string{"a": "b + 1", "b": "a + 1"}}.Setup()
	f := newFixture(t, `<p>ok</p><p>{{ a }}</p>`, setup)
	_, err := f.def.Render.Render(f.ctx.Scope())
	if !errors.Is(err, reactive.ErrCycleDetected) {
		t.Fatalf("Render error = %v, want ErrCycleDetected", err)
	}
}

func TestEventHandlers(t *testing.T) {
	f := newFixture(t, `<ul><li v-for="x in items" @click="picked = x">{{ x }}</li></ul><button @click="count += step">+</button>`,
		StateSetup(map[string]any{"items": []any{"a", "b"}, "picked": "", "count": 0, "step": 2}))
	out := f.render(t)

	if err := out.Nodes[1].Events["click"](nil); err != nil {
		t.Fatal(err)
	}
	if got := f.signal(t, "count").Peek(); got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
	if err := out.Nodes[0].Children[1].Events["click"](nil); err != nil {
		t.Fatal(err)
	}
	if got := f.signal(t, "picked").Peek(); got != "b" {
		t.Errorf("picked = %v, want the loop item of the clicked node", got)
	}
}

func TestEventPayload(t *testing.T) {
	var got []any
	setup := Chain(StateSetup(map[string]any{"last": nil}), func(c *Context) error {
		c.Func("record", func(v any) { got = append(got, v) })
		return nil
	})
	f := newFixture(t, `<a @click="record">x</a><b @click="last = $event">y</b>`, setup)
	out := f.render(t)
	if err := out.Nodes[0].Events["click"]("p1"); err != nil {
		t.Fatal(err)
	}
	if err := out.Nodes[1].Events["click"]("p2"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"p1"}, got); diff != "" {
		t.Errorf("record calls (-want +got):\n%s", diff)
	}
	if v := f.signal(t, "last").Peek(); v != "p2" {
		t.Errorf("last = %v, want p2", v)
	}
}

func TestModel(t *testing.T) {
	f := newFixture(t, `<input v-model="n"><input type="checkbox" v-model="done"><input v-model="name" @input="edits += 1">`,
		StateSetup(map[string]any{"n": 1, "done": false, "name": "x", "edits": 0}))
	out := f.render(t)
	if got, want := outline(out.Nodes), `<input value="1" @input></input><input type="checkbox" @change></input><input value="x" @input></input>`; got != want {
		t.Fatalf("render = %s, want %s", got, want)
	}

	if err := out.Nodes[0].Events["input"]("41"); err != nil {
		t.Fatal(err)
	}
	if v := f.signal(t, "n").Peek(); v != 41 {
		t.Errorf("n = %#v, want int 41", v)
	}
	if err := out.Nodes[0].Events["input"]("4x"); err != nil {
		t.Fatal(err)
	}
	if v := f.signal(t, "n").Peek(); v != "4x" {
		t.Errorf("n = %#v, want the raw text when it is not a number", v)
	}

	if err := out.Nodes[1].Events["change"]("on"); err != nil {
		t.Fatal(err)
	}
	if v := f.signal(t, "done").Peek(); v != true {
		t.Errorf("done = %v, want true", v)
	}
	if got := outline(f.render(t).Nodes[1:2]); got != `<input checked="" type="checkbox" @change></input>` {
		t.Errorf("checkbox after change = %s", got)
	}

	if err := out.Nodes[2].Events["input"]("y"); err != nil {
		t.Fatal(err)
	}
	if v := f.signal(t, "name").Peek(); v != "y" {
		t.Errorf("name = %v, want y", v)
	}
	if v := f.signal(t, "edits").Peek(); v != float64(1) {
		t.Errorf("edits = %v, want the author's handler to run after the model", v)
	}
}

func TestModelKeepsNumericKind(t *testing.T) {
	type level uint8
	initial := map[string]any{"count": 1, "big": int64(2), "ratio": float32(0.5), "lvl": level(3)}
	f := newFixture(t, `<input v-model="count"><input v-model="big"><input v-model="ratio"><input v-model="lvl">`,
		StateSetup(initial))
	out := f.render(t)

	tests := []struct {
		node    int
		name    string
		payload any
		want    any
	}{
		{0, "count", "7", 7},
		{0, "count", " 8 ", 8},
		{0, "count", float64(9), 9},
		{0, "count", "2.5", "2.5"},
		{1, "big", "12", int64(12)},
		{1, "big", int64(13), int64(13)},
		{2, "ratio", "0.25", float32(0.25)},
		{3, "lvl", "4", level(4)},
		{3, "lvl", "-1", "-1"},
		{3, "lvl", "300", "300"},
	}
	for _, tt := range tests {
		sig := f.signal(t, tt.name)
		sig.Set(initial[tt.name])
		if err := out.Nodes[tt.node].Events["input"](tt.payload); err != nil {
			t.Fatal(err)
		}
		if got := sig.Peek(); got != tt.want {
			t.Errorf("input %#v into %s = %#v (%T), want %#v (%T)", tt.payload, tt.name, got, got, tt.want, tt.want)
		}
	}
}

func TestModelNeedsWritableTarget(t *testing.T) {
	setup := func(c *Context) error {
		c.Const("fixed", "x")
		return nil
	}
	f := newFixture(t, `<input v-model="fixed">`, setup)
	out := f.render(t)
	err := out.Nodes[0].Events["input"]("y")
	if !errors.Is(err, expr.ErrNotWritable) {
		t.Errorf("err = %v, want ErrNotWritable", err)
	}
}

func TestEmit(t *testing.T) {
	var events []string
	rt := reactive.NewRuntime()
	g := rt.NewGraph("Child", nil)
	ctx := NewContext(g, map[string]*reactive.Signal{"label": g.Signal("L")}, func(event string, payload any) error {
		events = append(events, fmt.Sprintf("%s:%v", event, payload))
		return nil
	})
	def, err := Compile("Child", `<button @click="emit('picked', label)">{{ label }}</button>`, NewRegistry(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := def.Render.Render(ctx.Scope())
	if err != nil {
		t.Fatal(err)
	}
	if got := outline(out.Nodes); got != "<button @click>L</button>" {
		t.Errorf("render = %s", got)
	}
	if err := out.Nodes[0].Events["click"](nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"picked:L"}, events); diff != "" {
		t.Errorf("emitted (-want +got):\n%s", diff)
	}
}

func TestPropsShadowState(t *testing.T) {
	rt := reactive.NewRuntime()
	g := rt.NewGraph("Child", nil)
	ctx := NewContext(g, map[string]*reactive.Signal{"title": g.Signal("prop")}, nil)
	ctx.Signal("title", "state")
	v, err := ctx.Prop("title")
	if err != nil || v != "prop" {
		t.Errorf("Prop(title) = %v, %v; want the prop value", v, err)
	}
	if _, err := ctx.Prop("nope"); !errors.Is(err, expr.ErrUndefined) {
		t.Errorf("Prop(nope) err = %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	name, err := reg.Declare("todo-item")
	if err != nil || name != "TodoItem" {
		t.Fatalf("Declare = %q, %v", name, err)
	}
	for _, tag := range []string{"TodoItem", "todo-item", "TODO-ITEM", "todoItem"} {
		if got, ok := reg.Resolve(tag); !ok || got != "TodoItem" {
			t.Errorf("Resolve(%q) = %q, %v", tag, got, ok)
		}
	}
	if _, err := reg.Lookup("TodoItem"); !errors.Is(err, ErrNotCompiled) {
		t.Errorf("Lookup before compile err = %v", err)
	}
	if _, err := reg.Lookup("Nope"); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("Lookup unknown err = %v", err)
	}
	for _, bad := range []string{"", "1x", "a_b", "x-"} {
		if _, err := reg.Declare(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Declare(%q) err = %v", bad, err)
		}
	}
	if _, err := Compile("TodoItem", `<li>{{ text }}</li>`, reg, Options{}); err != nil {
		t.Fatal(err)
	}
	def, err := reg.Lookup("todo-item")
	if err != nil || def.Name != "TodoItem" {
		t.Errorf("Lookup = %v, %v", def, err)
	}
	if diff := cmp.Diff([]string{"TodoItem"}, reg.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	reg.Remove("TodoItem")
	if _, ok := reg.Resolve("todo-item"); ok {
		t.Errorf("Resolve after Remove succeeded")
	}
}

func TestCanonical(t *testing.T) {
	for in, want := range map[string]string{
		"todo-item": "TodoItem",
		"TodoItem":  "TodoItem",
		"counter":   "Counter",
		"x-ray-gun": "XRayGun",
	} {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileErrorLeavesNoArtifact(t *testing.T) {
	reg := NewRegistry()
	_, err := Compile("Broken", `<p>{{ x </p>`, reg, Options{})
	var pe *template.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want a ParseError", err)
	}
	if _, ok := reg.Resolve("Broken"); ok {
		t.Errorf("failed compile left a declaration behind")
	}

	if _, err := Compile("Good", `<p>1</p>`, reg, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := Compile("Good", `<p v-else>`, reg, Options{}); err == nil {
		t.Fatal("expected an error")
	}
	def, err := reg.Lookup("Good")
	if err != nil || def.Template.String() == "" {
		t.Errorf("previous definition lost: %v", err)
	}
}

func TestCompileUnresolvedComponent(t *testing.T) {
	_, err := Compile("App", `<Missing/>`, NewRegistry(), Options{Path: "app.vue"})
	if !errors.Is(err, template.ErrUnresolvedComponent) {
		t.Fatalf("err = %v, want ErrUnresolvedComponent", err)
	}
	if !strings.HasPrefix(err.Error(), "app.vue:") {
		t.Errorf("error %q not labelled with the path", err)
	}
}

func TestStateComputed(t *testing.T) {
	setup := State{
		Values:   map[string]any{"count": 2},
		Computed: map[string]string{"double": "count * 2"},
	}.Setup()
	f := newFixture(t, `<p>{{ double }}</p>`, setup)
	if got := outline(f.render(t).Nodes); got != "<p>4</p>" {
		t.Fatalf("render = %s", got)
	}
	f.signal(t, "count").Set(5)
	if got := outline(f.render(t).Nodes); got != "<p>10</p>" {
		t.Errorf("render after write = %s", got)
	}

	bad := State{Computed: map[string]string{"x": "1 +"}}.Setup()
	rt := reactive.NewRuntime()
	if err := bad(NewContext(rt.NewGraph("x", nil), nil, nil)); err == nil {
		t.Errorf("expected a parse error from a bad computed expression")
	}
}
