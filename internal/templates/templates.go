package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/villain/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project directory.
	ProjectName string

	// Title is shown by the root component.
	Title string
}

// Template represents a set of starter components.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files maps paths relative to the components directory to contents.
	// Contents are text/templates with [[ ]] delimiters, leaving {{ }}
	// to the component templates.
	Files map[string]string
}

// Default is the template used when none is named.
const Default = "counter"

// Available templates.
var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"counter": counterTemplate(),
	"list":    listTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("V081").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: minimal, counter, list")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the relative paths of the template's files, sorted.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Render executes the file at relPath with cfg.
func (t *Template) Render(relPath string, cfg Config) ([]byte, error) {
	content, ok := t.Files[relPath]
	if !ok {
		return nil, errors.Newf(errors.CategoryCLI, "template %s has no file %s", t.Name, relPath)
	}
	tmpl, err := template.New(relPath).Delims("[[", "]]").Parse(content)
	if err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
	}
	return buf.Bytes(), nil
}

// Create writes the template's files into dir. Existing files are kept
// unless overwrite is set; the paths written are returned.
func (t *Template) Create(dir string, cfg Config, overwrite bool) ([]string, error) {
	var written []string
	for _, relPath := range t.Paths() {
		path := filepath.Join(dir, filepath.FromSlash(relPath))
		if _, err := os.Stat(path); err == nil && !overwrite {
			continue
		}
		content, err := t.Render(relPath, cfg)
		if err != nil {
			return written, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "A single App component with a text input",
		Files: map[string]string{
			"App.vue": `<template>
  <main>
    <h1>{{ title }}</h1>
    <input v-model="name" placeholder="Your name" />
    <p v-if="name">Hello, {{ name }}!</p>
  </main>
</template>
`,
			"App.yaml": `state:
  title: [[ printf "%q" .Title ]]
  name: ""
`,
		},
	}
}

func counterTemplate() *Template {
	return &Template{
		Name:        "counter",
		Description: "An App composing a Counter component through props and events",
		Files: map[string]string{
			"App.vue": `<template>
  <main>
    <h1>{{ title }}</h1>
    <Counter :step="2" @changed="changes += 1" />
    <p v-if="changes > 0">Changed {{ changes }} times</p>
  </main>
</template>
`,
			"App.yaml": `state:
  title: [[ printf "%q" .Title ]]
  changes: 0
`,
			"Counter.vue": `<template>
  <div class="counter">
    <button @click="count -= step; emit('changed', count)">-</button>
    <span>{{ count }}</span>
    <button @click="count += step; emit('changed', count)">+</button>
  </div>
</template>
`,
			"Counter.yaml": `props: [step]
state:
  count: 0
`,
		},
	}
}

func listTemplate() *Template {
	return &Template{
		Name:        "list",
		Description: "A keyed list with a filter",
		Files: map[string]string{
			"App.vue": `<template>
  <main>
    <h1>{{ title }}</h1>
    <label><input type="checkbox" v-model="showDone" /> Show done</label>
    <ul>
      <list-item v-for="item in items" :key="item.id" v-if="showDone || !item.done" :label="item.label" :done="item.done" />
    </ul>
  </main>
</template>
`,
			"App.yaml": `state:
  title: [[ printf "%q" .Title ]]
  showDone: true
  items:
    - {id: 1, label: Parse templates, done: true}
    - {id: 2, label: Track dependencies, done: true}
    - {id: 3, label: Reconcile keyed lists, done: false}
`,
			"ListItem.vue": `<template>
  <li :class="done ? 'done' : 'open'">{{ label }}</li>
</template>
`,
			"ListItem.yaml": `props: [label, done]
`,
		},
	}
}
