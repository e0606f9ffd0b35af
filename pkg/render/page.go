package render

import (
	"fmt"
	"io"

	"github.com/vango-dev/villain/pkg/vdom"
)

// PageData contains all data needed to render a complete HTML page.
type PageData struct {
	// Body is the mounted content, placed inside the mount element.
	Body []*vdom.VNode

	// Title is the page title
	Title string

	// Lang is the language attribute for the html element
	// Defaults to "en" if not specified
	Lang string

	// StyleSheets contains paths to external stylesheets
	StyleSheets []string

	// MountID is the id of the element the body is mounted into.
	// Defaults to "app".
	MountID string

	// ClientScript is the path of the client that connects to SocketPath
	// and applies op frames. No script is emitted when empty.
	ClientScript string

	// SocketPath is the websocket endpoint handed to the client.
	SocketPath string
}

// RenderPage renders a complete HTML document to the given writer.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}
	mount := page.MountID
	if mount == "" {
		mount = "app"
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", escapeHTML(lang)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `  <meta charset="utf-8">`+"\n"); err != nil {
		return err
	}
	if page.Title != "" {
		if _, err := fmt.Fprintf(w, "  <title>%s</title>\n", escapeHTML(page.Title)); err != nil {
			return err
		}
	}
	for _, href := range page.StyleSheets {
		if _, err := fmt.Fprintf(w, `  <link rel="stylesheet" href="%s">`+"\n", escapeHTML(href)); err != nil {
			return err
		}
	}
	if page.ClientScript != "" {
		if _, err := fmt.Fprintf(w, `  <script src="%s" data-socket="%s" data-mount="%s" defer></script>`+"\n",
			escapeHTML(page.ClientScript), escapeHTML(page.SocketPath), escapeHTML(mount)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "</head>\n<body>\n<div id=\"%s\">", escapeHTML(mount)); err != nil {
		return err
	}
	if err := r.RenderToWriter(w, page.Body...); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</div>\n</body>\n</html>\n")
	return err
}
