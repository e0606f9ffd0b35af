package host

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/villain/pkg/vdom"
)

// HTMLSurface is an in-memory DOM built on golang.org/x/net/html. It backs
// server-side rendering, the CLI and tests.
//
// Component containers are <villain-component name="..."> elements,
// placeholders are empty comments and event listeners show up as
// data-on-<event> attributes.
type HTMLSurface struct {
	root *html.Node
}

// NewHTMLSurface creates a surface whose mount point is a detached <div>.
func NewHTMLSurface() *HTMLSurface {
	return &HTMLSurface{root: &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}}
}

// Root implements Surface.
func (s *HTMLSurface) Root() NodeRef { return s.root }

// RootNode returns the mount point.
func (s *HTMLSurface) RootNode() *html.Node { return s.root }

// Create implements Surface.
func (s *HTMLSurface) Create(kind vdom.VKind, tag, text string) NodeRef {
	switch kind {
	case vdom.KindText:
		return &html.Node{Type: html.TextNode, Data: text}
	case vdom.KindPlaceholder:
		return &html.Node{Type: html.CommentNode}
	case vdom.KindComponent:
		return &html.Node{
			Type: html.ElementNode,
			Data: vdom.ComponentTag,
			Attr: []html.Attribute{{Key: "name", Val: tag}},
		}
	}
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// attrName maps engine attribute names to HTML ones.
func attrName(name string) (string, string, bool) {
	if ev, ok := strings.CutPrefix(name, "on:"); ok {
		return "data-on-" + ev, "true", true
	}
	return name, "", false
}

// SetAttribute implements Surface.
func (s *HTMLSurface) SetAttribute(ref NodeRef, name, value string) {
	n := ref.(*html.Node)
	if key, val, ok := attrName(name); ok {
		name, value = key, val
	}
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttribute implements Surface.
func (s *HTMLSurface) RemoveAttribute(ref NodeRef, name string) {
	n := ref.(*html.Node)
	name, _, _ = attrName(name)
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// SetText implements Surface.
func (s *HTMLSurface) SetText(ref NodeRef, text string) {
	n := ref.(*html.Node)
	if n.Type == html.TextNode {
		n.Data = text
		return
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// Insert implements Surface.
func (s *HTMLSurface) Insert(parent, child, before NodeRef) {
	p, c := parent.(*html.Node), child.(*html.Node)
	if c.Parent != nil {
		c.Parent.RemoveChild(c)
	}
	if b, ok := before.(*html.Node); ok && b != nil {
		p.InsertBefore(c, b)
		return
	}
	p.AppendChild(c)
}

// Remove implements Surface.
func (s *HTMLSurface) Remove(ref NodeRef) {
	n := ref.(*html.Node)
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InnerHTML serializes the content of the mount point.
func (s *HTMLSurface) InnerHTML() (string, error) {
	var b strings.Builder
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Find returns the first node under the mount point, in document order,
// for which match returns true.
func (s *HTMLSurface) Find(match func(*html.Node) bool) *html.Node {
	var walk func(n *html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				return c
			}
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(s.root)
}

// ByTag matches elements with the given tag.
func ByTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// Attr returns the value of an attribute of n.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
