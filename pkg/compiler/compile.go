package compiler

import (
	"github.com/vango-dev/villain/pkg/template"
)

var _ template.Resolver = (*Registry)(nil)

// Options configure Compile.
type Options struct {
	// Path labels diagnostics. Defaults to the component name.
	Path       string
	Whitespace template.Whitespace
	// Props are the declared prop names. Declared props are always in
	// scope, nil until the parent passes a value.
	Props []string
	Setup Setup
}

// Definition is a compiled component.
type Definition struct {
	Name     string
	Path     string
	Props    []string
	Template *template.Template
	Render   *Procedure
	Setup    Setup
}

// Compile parses and lowers a component template and registers the result
// under name. Components referenced by the template must already be
// declared in reg. On error nothing is registered and a previously
// registered definition of the same name is kept.
func Compile(name, src string, reg *Registry, opts Options) (*Definition, error) {
	_, known := reg.Resolve(name)
	canonical, err := reg.Declare(name)
	if err != nil {
		return nil, err
	}
	def, err := build(canonical, src, reg, opts)
	if err != nil {
		if !known {
			reg.Remove(canonical)
		}
		return nil, err
	}
	if err := reg.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

func build(name, src string, reg *Registry, opts Options) (*Definition, error) {
	path := opts.Path
	if path == "" {
		path = name
	}
	tmpl, err := template.Parse(src, template.Options{
		Name:       path,
		Components: reg,
		Whitespace: opts.Whitespace,
	})
	if err != nil {
		return nil, err
	}
	proc, err := Lower(tmpl)
	if err != nil {
		return nil, err
	}
	return &Definition{
		Name:     name,
		Path:     path,
		Props:    append([]string(nil), opts.Props...),
		Template: tmpl,
		Render:   proc,
		Setup:    opts.Setup,
	}, nil
}
