package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrUnknownComponent is returned when a name was never declared.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrNotCompiled is returned for a declared component whose template has
	// not compiled (yet).
	ErrNotCompiled = errors.New("component not compiled")
	// ErrInvalidName is returned for names that cannot be used as a tag.
	ErrInvalidName = errors.New("invalid component name")
)

// Registry maps component names to their definitions. Lookups ignore case
// and accept both kebab-case and PascalCase spellings, so <todo-item> and
// <TodoItem> resolve to the same component.
//
// A name can be declared before its definition exists. Declaring every
// component of a project first lets their templates reference each other
// in any compile order.
//
// Registry implements template.Resolver and is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string      // folded -> canonical
	defs  map[string]*Definition // canonical -> definition, nil until compiled
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]string),
		defs:  make(map[string]*Definition),
	}
}

// fold reduces a tag to its lookup form: dashes dropped, case folded.
func fold(tag string) string {
	return cases.Fold().String(strings.ReplaceAll(tag, "-", ""))
}

// Canonical returns the PascalCase form of a component name:
// "todo-item" becomes "TodoItem"; "TodoItem" is unchanged.
func Canonical(name string) string {
	if !strings.Contains(name, "-") {
		if name == "" {
			return ""
		}
		return strings.ToUpper(name[:1]) + name[1:]
	}
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, part := range strings.Split(name, "-") {
		b.WriteString(title.String(part))
	}
	return b.String()
}

func validName(name string) bool {
	if name == "" || !isLetter(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
	}
	return !strings.HasSuffix(name, "-")
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Declare reserves a component name and returns its canonical form.
// Declaring an already known name is a no-op.
func (r *Registry) Declare(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.declareLocked(name), nil
}

func (r *Registry) declareLocked(name string) string {
	f := fold(name)
	if c, ok := r.names[f]; ok {
		return c
	}
	c := Canonical(name)
	r.names[f] = c
	r.defs[c] = nil
	return c
}

// Register stores def under its (declared) name, replacing any previous
// definition.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidName)
	}
	if !validName(def.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	def.Name = r.declareLocked(def.Name)
	r.defs[def.Name] = def
	return nil
}

// Remove forgets a component. Templates referencing it fail to compile
// afterwards.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := fold(name)
	if c, ok := r.names[f]; ok {
		delete(r.names, f)
		delete(r.defs, c)
	}
}

// Resolve implements template.Resolver.
func (r *Registry) Resolve(tag string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.names[fold(tag)]
	return c, ok
}

// Lookup returns the compiled definition for name.
func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.names[fold(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	def := r.defs[c]
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCompiled, c)
	}
	return def, nil
}

// Names returns every declared canonical name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for c := range r.defs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
