package vdom

import "fmt"

// Attr is a single attribute passed to El.
type Attr struct {
	Key   string
	Value string
}

// A sets an attribute.
func A(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// keyArg sets an explicit key.
type keyArg string

// Key marks a node with an explicit, author-supplied key.
func Key(key any) any {
	return keyArg(fmt.Sprint(key))
}

// on binds an event handler.
type on struct {
	event string
	fn    EventFunc
}

// On binds fn to event.
func On(event string, fn EventFunc) any {
	return on{event: event, fn: fn}
}

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Placeholder creates the stand-in for an unmatched conditional.
func Placeholder(key string) *VNode {
	return &VNode{Kind: KindPlaceholder, Key: key}
}

// Component creates a child component container node.
func Component(name string, props map[string]any, args ...any) *VNode {
	node := &VNode{Kind: KindComponent, Tag: name, Props: props}
	apply(node, args)
	return node
}

// El creates an element. Arguments may be Attr, Key(...), On(...), child
// nodes, slices of child nodes, or strings (text children).
func El(tag string, args ...any) *VNode {
	node := &VNode{Kind: KindElement, Tag: tag}
	apply(node, args)
	return node
}

func apply(node *VNode, args []any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case Attr:
			if node.Attrs == nil {
				node.Attrs = make(map[string]string)
			}
			node.Attrs[v.Key] = v.Value
		case keyArg:
			node.Key = string(v)
			node.KeyExplicit = true
		case on:
			if node.Events == nil {
				node.Events = make(map[string]EventFunc)
			}
			node.Events[v.event] = v.fn
		case *VNode:
			if v != nil {
				node.Children = append(node.Children, v)
			}
		case []*VNode:
			for _, c := range v {
				if c != nil {
					node.Children = append(node.Children, c)
				}
			}
		case string:
			node.Children = append(node.Children, Text(v))
		default:
			panic(fmt.Sprintf("vdom: unsupported argument %T", arg))
		}
	}
}
