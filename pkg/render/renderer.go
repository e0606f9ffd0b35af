package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vango-dev/villain/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables pretty-printed HTML output with indentation.
	// Should only be used for inspection as it changes text content.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string
}

// Renderer serializes VNode trees to HTML.
//
// Component nodes render as <villain-component name="..."> containers
// holding their Children, which is where a composed snapshot puts the
// child instance's nodes. Placeholders render as empty comments and event
// listeners as data-on-<event> markers, the same shape a host.HTMLSurface
// produces from the equivalent ops.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders a sibling group to an HTML string.
func (r *Renderer) RenderToString(nodes ...*vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, nodes...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a sibling group to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, nodes ...*vdom.VNode) error {
	for _, n := range nodes {
		if err := r.renderNode(w, n, 0); err != nil {
			return err
		}
	}
	return nil
}

// renderNode dispatches rendering based on node kind.
func (r *Renderer) renderNode(w io.Writer, node *vdom.VNode, depth int) error {
	if node == nil {
		return nil
	}

	switch node.Kind {
	case vdom.KindElement:
		return r.renderElement(w, node.Tag, node, depth)
	case vdom.KindText:
		return r.renderText(w, node)
	case vdom.KindPlaceholder:
		r.writeIndent(w, depth)
		_, err := io.WriteString(w, "<!---->")
		r.newline(w, depth)
		return err
	case vdom.KindComponent:
		return r.renderElement(w, vdom.ComponentTag, node, depth)
	default:
		return fmt.Errorf("render: unknown node kind: %d", node.Kind)
	}
}

// renderElement renders an element, or a component container, with its
// attributes and children.
func (r *Renderer) renderElement(w io.Writer, tag string, node *vdom.VNode, depth int) error {
	r.writeIndent(w, depth)

	if _, err := fmt.Fprintf(w, "<%s", tag); err != nil {
		return err
	}
	if err := r.renderAttributes(w, node); err != nil {
		return err
	}

	// Self-closing check for void elements
	if node.Kind == vdom.KindElement && isVoidElement(tag) {
		if len(node.Children) > 0 {
			return fmt.Errorf("render: void element <%s> has child nodes", tag)
		}
		if _, err := io.WriteString(w, "/>"); err != nil {
			return err
		}
		r.newline(w, depth)
		return nil
	}

	if _, err := io.WriteString(w, ">"); err != nil {
		return err
	}

	// Newline after opening tag if has children and pretty printing
	hasBlockChildren := r.config.Pretty && len(node.Children) > 0 && !isInlineElement(tag)
	if _, textOnly := node.TextContent(); textOnly {
		hasBlockChildren = false
	}
	if hasBlockChildren {
		r.newline(w, depth)
	}

	for _, child := range node.Children {
		d := depth + 1
		if !hasBlockChildren {
			d = -1
		}
		if err := r.renderNode(w, child, d); err != nil {
			return err
		}
	}

	if hasBlockChildren {
		r.writeIndent(w, depth)
	}
	if _, err := fmt.Fprintf(w, "</%s>", tag); err != nil {
		return err
	}
	r.newline(w, depth)
	return nil
}

// renderText renders a text node with HTML escaping.
func (r *Renderer) renderText(w io.Writer, node *vdom.VNode) error {
	_, err := io.WriteString(w, escapeHTML(node.Text))
	return err
}

// renderAttributes renders attributes in name order, then event markers in
// event order. Component containers carry their name.
func (r *Renderer) renderAttributes(w io.Writer, node *vdom.VNode) error {
	if node.Kind == vdom.KindComponent {
		_, err := fmt.Fprintf(w, ` name="%s"`, escapeHTML(node.Tag))
		return err
	}

	keys := make([]string, 0, len(node.Attrs))
	for key := range node.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(w, ` %s="%s"`, key, escapeHTML(node.Attrs[key])); err != nil {
			return err
		}
	}

	// Add event marker attributes (for client-side binding)
	for _, event := range node.EventNames() {
		if _, err := fmt.Fprintf(w, ` data-on-%s="true"`, event); err != nil {
			return err
		}
	}

	return nil
}

// writeIndent writes indentation for pretty printing. Negative depth marks
// inline content.
func (r *Renderer) writeIndent(w io.Writer, depth int) {
	if !r.config.Pretty || depth <= 0 {
		return
	}
	for i := 0; i < depth; i++ {
		io.WriteString(w, r.config.Indent)
	}
}

func (r *Renderer) newline(w io.Writer, depth int) {
	if r.config.Pretty && depth >= 0 {
		io.WriteString(w, "\n")
	}
}
