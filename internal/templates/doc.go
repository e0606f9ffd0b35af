// Package templates provides the starter components written by
// "villain init".
//
// Each template is a set of component and state files for the components
// directory. File contents are text/templates using [[ ]] delimiters,
// because component templates already use {{ }} for interpolation:
//
//	tmpl, err := templates.Get("counter")
//	written, err := tmpl.Create("components", templates.Config{Title: "Demo"}, false)
package templates
