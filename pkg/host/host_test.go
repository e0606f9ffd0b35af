package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/vango-dev/villain/pkg/vdom"
)

type harness struct {
	rec     *vdom.Reconciler
	surface *HTMLSurface
	app     *Applier
	prev    []*vdom.VNode
}

func newHarness() *harness {
	s := NewHTMLSurface()
	return &harness{rec: vdom.NewReconciler(), surface: s, app: NewApplier(s)}
}

func (h *harness) commit(t *testing.T, next ...*vdom.VNode) string {
	t.Helper()
	res := h.rec.Reconcile(vdom.RootID, h.prev, next)
	require.NoError(t, h.app.Apply(res.Ops))
	h.prev = next
	out, err := h.surface.InnerHTML()
	require.NoError(t, err)
	return out
}

func items(keys ...string) []*vdom.VNode {
	out := make([]*vdom.VNode, len(keys))
	for i, k := range keys {
		out[i] = vdom.El("li", vdom.Key(k), k)
	}
	return out
}

func TestApplyMount(t *testing.T) {
	h := newHarness()
	got := h.commit(t, vdom.El("div", vdom.A("class", "app"), vdom.On("click", nil),
		vdom.El("p", "a < b"),
		vdom.Placeholder("c"),
		vdom.Component("Counter", nil),
		vdom.El("input", vdom.A("disabled", "")),
	))
	assert.Equal(t, `<div class="app" data-on-click="true"><p>a &lt; b</p><!----><villain-component name="Counter"></villain-component><input disabled=""/></div>`, got)
	assert.Equal(t, 6, h.app.Len())
}

func TestApplyKeyedReorderKeepsNodes(t *testing.T) {
	h := newHarness()
	list := vdom.El("ul", items("a", "b", "c", "d"))
	assert.Equal(t, "<ul><li>a</li><li>b</li><li>c</li><li>d</li></ul>", h.commit(t, list))

	before := map[string]*html.Node{}
	for c := h.surface.Find(ByTag("ul")).FirstChild; c != nil; c = c.NextSibling {
		before[c.FirstChild.Data] = c
	}

	got := h.commit(t, vdom.El("ul", items("d", "b", "e", "a")))
	assert.Equal(t, "<ul><li>d</li><li>b</li><li>e</li><li>a</li></ul>", got)
	for c := h.surface.Find(ByTag("ul")).FirstChild; c != nil; c = c.NextSibling {
		if old, ok := before[c.FirstChild.Data]; ok {
			assert.Same(t, old, c, "node %s was recreated", c.FirstChild.Data)
		}
	}
	// Removed "c" is forgotten, "e" is new.
	assert.Equal(t, 1+1+4, h.app.Len())
}

func TestApplyTextTransitions(t *testing.T) {
	h := newHarness()
	assert.Equal(t, "<p>one</p>", h.commit(t, vdom.El("p", "one")))
	assert.Equal(t, "<p>two</p>", h.commit(t, vdom.El("p", "two")))
	assert.Equal(t, "<p><b>x</b>y</p>", h.commit(t, vdom.El("p", vdom.El("b", "x"), "y")))
	assert.Equal(t, "<p>back</p>", h.commit(t, vdom.El("p", "back")))
	assert.Equal(t, "<p></p>", h.commit(t, vdom.El("p")))
}

func TestApplyReplaceAndRemove(t *testing.T) {
	h := newHarness()
	h.commit(t, vdom.El("div", vdom.El("p", "x"), vdom.El("span", "y")))
	assert.Equal(t, "<div><h1>x</h1><span>y</span></div>", h.commit(t, vdom.El("div", vdom.El("h1", "x"), vdom.El("span", "y"))))
	assert.Equal(t, "<div><h1>x</h1></div>", h.commit(t, vdom.El("div", vdom.El("h1", "x"))))
	assert.Equal(t, 3, h.app.Len())
	assert.Equal(t, "", h.commit(t))
	assert.Equal(t, 1, h.app.Len())
}

func TestApplyAttributes(t *testing.T) {
	h := newHarness()
	h.commit(t, vdom.El("a", vdom.A("href", "/x"), vdom.A("title", "t"), vdom.On("click", nil)))
	got := h.commit(t, vdom.El("a", vdom.A("href", "/y")))
	assert.Equal(t, `<a href="/y"></a>`, got)
}

func TestRefAndID(t *testing.T) {
	h := newHarness()
	btn := vdom.El("button", "go")
	h.commit(t, btn)

	n := h.surface.Find(ByTag("button"))
	require.NotNil(t, n)
	id, ok := h.app.ID(n)
	require.True(t, ok)
	assert.Equal(t, btn.ID, id)

	ref, ok := h.app.Ref(id)
	require.True(t, ok)
	assert.Same(t, n, ref)

	root, ok := h.app.Ref(vdom.RootID)
	require.True(t, ok)
	assert.Same(t, h.surface.RootNode(), root)
}

func TestApplyUnknownNode(t *testing.T) {
	a := NewApplier(NewHTMLSurface())
	err := a.Apply([]vdom.Op{{Kind: vdom.OpSetText, Node: 42, Value: "x"}})
	assert.ErrorIs(t, err, ErrUnknownNode)

	err = a.Apply([]vdom.Op{
		{Kind: vdom.OpCreateNode, Node: 2, NodeKind: vdom.KindElement, Tag: "p"},
		{Kind: vdom.OpInsertChild, Node: 2, Parent: 9},
	})
	assert.ErrorIs(t, err, ErrUnknownNode)

	err = a.Apply([]vdom.Op{{Kind: vdom.OpCreateNode, Node: 2, NodeKind: vdom.KindText}})
	assert.Error(t, err, "duplicate create must fail")
}

func TestAttrHelpers(t *testing.T) {
	s := NewHTMLSurface()
	n := s.Create(vdom.KindElement, "p", "").(*html.Node)
	s.SetAttribute(n, "id", "a")
	s.SetAttribute(n, "id", "b")
	s.SetAttribute(n, vdom.EventAttr("input"), "")
	v, ok := Attr(n, "id")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = Attr(n, "data-on-input")
	assert.True(t, ok)
	s.RemoveAttribute(n, vdom.EventAttr("input"))
	_, ok = Attr(n, "data-on-input")
	assert.False(t, ok)
}
