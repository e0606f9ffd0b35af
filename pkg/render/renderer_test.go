package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vango-dev/villain/pkg/host"
	"github.com/vango-dev/villain/pkg/vdom"
)

func TestRenderText(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	html, err := renderer.RenderToString(vdom.Text("Hello, World!"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "Hello, World!" {
		t.Errorf("got %q, want %q", html, "Hello, World!")
	}
}

func TestRenderTextEscaping(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	html, err := renderer.RenderToString(vdom.Text("<script>alert('xss')</script>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("HTML should be escaped, got %q", html)
	}
	if want := "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;"; html != want {
		t.Errorf("got %q, want %q", html, want)
	}
}

func TestRenderElement(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	node := vdom.El("div", vdom.A("class", "container"), vdom.A("data-x", `a"b`),
		vdom.El("h1", "Title"),
		vdom.El("p", "Content"),
		vdom.El("br"),
	)
	html, err := renderer.RenderToString(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<div class="container" data-x="a&#34;b"><h1>Title</h1><p>Content</p><br/></div>`
	if html != want {
		t.Errorf("got %q, want %q", html, want)
	}
}

func TestRenderVoidWithChildren(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})
	if _, err := renderer.RenderToString(vdom.El("img", "x")); err == nil {
		t.Error("expected an error for a void element with children")
	}
}

func TestRenderComponentAndPlaceholder(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	comp := vdom.Component("Counter", map[string]any{"start": 1})
	comp.Children = []*vdom.VNode{vdom.El("p", "1")}
	html, err := renderer.RenderToString(comp, vdom.Placeholder("c1"), vdom.El("button", vdom.On("click", nil), "+"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<villain-component name="Counter"><p>1</p></villain-component><!----><button data-on-click="true">+</button>`
	if html != want {
		t.Errorf("got %q, want %q", html, want)
	}
}

func TestRenderMatchesHTMLSurface(t *testing.T) {
	tree := []*vdom.VNode{
		vdom.El("section", vdom.A("id", "main"), vdom.A("title", "it's <here> & \"there\""),
			vdom.El("ul",
				vdom.El("li", vdom.Key("a"), "one & two"),
				vdom.El("li", vdom.Key("b"), vdom.El("b", "bold"), " tail"),
			),
			vdom.El("input", vdom.A("value", "x"), vdom.On("input", nil)),
			vdom.Placeholder("p"),
		),
		vdom.Text("after"),
	}

	renderer := NewRenderer(RendererConfig{})
	want, err := renderer.RenderToString(tree...)
	if err != nil {
		t.Fatal(err)
	}

	surface := host.NewHTMLSurface()
	res := vdom.NewReconciler().Reconcile(vdom.RootID, nil, tree)
	if err := host.NewApplier(surface).Apply(res.Ops); err != nil {
		t.Fatal(err)
	}
	got, err := surface.InnerHTML()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("surface HTML differs from rendered HTML\nsurface: %s\nrender:  %s", got, want)
	}
}

func TestRenderPretty(t *testing.T) {
	renderer := NewRenderer(RendererConfig{Pretty: true})

	node := vdom.El("div", vdom.El("p", "a"), vdom.El("span", vdom.El("b", "x")))
	html, err := renderer.RenderToString(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<div>\n  <p>a</p>\n  <span><b>x</b></span>\n</div>\n"
	if html != want {
		t.Errorf("got %q, want %q", html, want)
	}
}

func TestRenderNilNode(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})
	html, err := renderer.RenderToString(nil)
	if err != nil || html != "" {
		t.Errorf("got %q, %v", html, err)
	}
}

func TestRenderPage(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	var buf bytes.Buffer
	err := renderer.RenderPage(&buf, PageData{
		Title:        "Counter <demo>",
		Body:         []*vdom.VNode{vdom.El("p", "0")},
		ClientScript: "/_villain/client.js",
		SocketPath:   "/_villain/ws",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		`<html lang="en">`,
		"<title>Counter &lt;demo&gt;</title>",
		`<script src="/_villain/client.js" data-socket="/_villain/ws" data-mount="app" defer></script>`,
		`<div id="app"><p>0</p></div>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q:\n%s", want, html)
		}
	}
}
