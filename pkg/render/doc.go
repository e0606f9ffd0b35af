// Package render serializes VNode trees to HTML.
//
// It produces the same markup a host.HTMLSurface builds from ops, so a
// server can send a first paint rendered from a snapshot and then stream
// ops against it:
//
//	renderer := render.NewRenderer(render.RendererConfig{})
//	html, err := renderer.RenderToString(nodes...)
//
// RenderPage wraps the content in a complete document with the client
// script tag.
//
// All text and attribute values are escaped.
package render
