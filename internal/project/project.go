package project

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/villain/internal/config"
	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/template"
)

// StateExt is the extension of a component's state file, which sits next
// to the component source: Counter.vue and Counter.yaml.
const StateExt = ".yaml"

// Component is a discovered component source file.
type Component struct {
	// Name is the file name without its extension.
	Name string
	Path string
	// StatePath is the state file, empty when there is none.
	StatePath string
}

// Options configure a Project.
type Options struct {
	Dir        string
	Patterns   []string
	Exclude    []string
	Whitespace template.Whitespace
	Logger     *slog.Logger
}

// OptionsFrom derives project options from the configuration.
func OptionsFrom(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Dir:        cfg.ComponentsPath(),
		Patterns:   cfg.Components.Patterns,
		Exclude:    cfg.Components.Exclude,
		Whitespace: cfg.WhitespacePolicy(),
		Logger:     logger,
	}
}

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func foldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", ""))
}

// Discover walks dir for component files: files whose base name matches
// one of patterns and none of exclude. Results are sorted by path. Two
// files naming the same component are an error.
func Discover(dir string, patterns, exclude []string) ([]*Component, error) {
	var out []*Component
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (ignoredDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchAny(patterns, name) || matchAny(exclude, name) {
			return nil
		}

		c := &Component{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Path: path,
		}
		if prev, ok := seen[foldName(c.Name)]; ok {
			return errors.New("V011").
				WithDetail(fmt.Sprintf("%s and %s both define %s", prev, path, compiler.Canonical(c.Name)))
		}
		seen[foldName(c.Name)] = path

		state := strings.TrimSuffix(path, filepath.Ext(path)) + StateExt
		if state != path {
			if _, err := os.Stat(state); err == nil {
				c.StatePath = state
			}
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Report is the outcome of compiling a project.
type Report struct {
	// Compiled lists the canonical names that compiled, sorted.
	Compiled []string
	// Errors holds one diagnostic per component that failed.
	Errors []*errors.Error
}

// OK reports whether every component compiled.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Err returns the first diagnostic, or nil.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Project compiles a component directory into a registry.
type Project struct {
	reg    *compiler.Registry
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	components map[string]*Component // canonical name -> source
}

// New creates a project compiling into reg.
func New(reg *compiler.Registry, opts Options) *Project {
	if len(opts.Patterns) == 0 {
		opts.Patterns = config.DefaultPatterns
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Project{
		reg:        reg,
		opts:       opts,
		logger:     logger.With("component", "project"),
		components: make(map[string]*Component),
	}
}

// Registry returns the registry the project compiles into.
func (p *Project) Registry() *compiler.Registry {
	return p.reg
}

// Dir returns the component directory.
func (p *Project) Dir() string {
	return p.opts.Dir
}

// Components returns the components found by the last Load, sorted by
// name.
func (p *Project) Components() []*Component {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Component, 0, len(p.components))
	for _, c := range p.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load discovers and compiles every component. All names are declared
// before anything compiles, so components may reference each other in
// any order. Components that disappeared since the previous Load are
// removed from the registry. A component that fails keeps its previous
// definition, if any.
//
// The returned error covers discovery only; compile failures are in the
// Report.
func (p *Project) Load() (*Report, error) {
	found, err := Discover(p.opts.Dir, p.opts.Patterns, p.opts.Exclude)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	report := &Report{}
	next := make(map[string]*Component, len(found))
	var declared []*Component
	for _, c := range found {
		canonical, err := p.reg.Declare(c.Name)
		if err != nil {
			report.Errors = append(report.Errors, errors.FromError(err, "V010").
				WithDetail(fmt.Sprintf("%s: %q cannot be used as a tag", c.Path, c.Name)))
			continue
		}
		next[canonical] = c
		declared = append(declared, c)
	}
	for name := range p.components {
		if _, ok := next[name]; !ok {
			p.reg.Remove(name)
			p.logger.Info("component removed", "name", name)
		}
	}
	p.components = next

	for _, c := range declared {
		def, diag := p.compile(c)
		if diag != nil {
			report.Errors = append(report.Errors, diag)
			p.logger.Warn("compile failed", "path", c.Path, "error", diag)
			continue
		}
		report.Compiled = append(report.Compiled, def.Name)
	}
	sort.Strings(report.Compiled)

	p.logger.Debug("project loaded", "dir", p.opts.Dir,
		"compiled", len(report.Compiled), "failed", len(report.Errors))
	return report, nil
}

func (p *Project) compile(c *Component) (*compiler.Definition, *errors.Error) {
	src, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, errors.Newf(errors.CategoryCompile, "reading %s", c.Path).Wrap(err).WithDetail(err.Error())
	}

	opts := compiler.Options{
		Path:       c.Path,
		Whitespace: p.opts.Whitespace,
	}
	if c.StatePath != "" {
		st, err := ReadState(c.StatePath)
		if err != nil {
			return nil, errors.FromError(err, "V063")
		}
		opts.Props = st.Props
		opts.Setup = st.State.Setup()
	}

	def, err := compiler.Compile(c.Name, string(src), p.reg, opts)
	if err != nil {
		return nil, errors.Diagnose(err, string(src))
	}
	return def, nil
}
