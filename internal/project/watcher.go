package project

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeType classifies a changed file.
type ChangeType int

const (
	ChangeSource ChangeType = iota
	ChangeState
)

func (t ChangeType) String() string {
	if t == ChangeState {
		return "state"
	}
	return "source"
}

// Change is a file that was written, created, removed or renamed.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Dir      string
	Patterns []string
	// Ignore holds names, path segments or globs to skip.
	Ignore []string
	// Debounce is how long the directory must stay quiet before changes
	// are reported.
	Debounce time.Duration
	Logger   *slog.Logger
}

// DefaultIgnore contains the patterns ignored when none are configured.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher reports batches of changed component and state files.
type Watcher struct {
	config   WatcherConfig
	logger   *slog.Logger
	mu       sync.Mutex
	onChange func([]Change)
	running  bool
	stopCh   chan struct{}
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		config: config,
		logger: logger.With("component", "watcher"),
	}
}

// OnChange sets the callback receiving each debounced batch, sorted by
// path with duplicates removed.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called. Directories created
// while running are watched as well.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.setStopped()
		return err
	}
	defer fw.Close()
	defer w.setStopped()

	if err := w.addRecursive(fw, w.config.Dir); err != nil {
		return err
	}

	pending := make(map[string]ChangeType)
	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && w.isDir(event.Name) {
				if err := w.addRecursive(fw, event.Name); err != nil {
					w.logger.Warn("watch failed", "path", event.Name, "error", err)
				}
				continue
			}
			typ, ok := w.classify(event.Name)
			if !ok || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] = typ
			timer.Reset(w.config.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]ChangeType)
		}
	}
}

func (w *Watcher) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) flush(pending map[string]ChangeType) {
	if len(pending) == 0 {
		return
	}
	changes := make([]Change, 0, len(pending))
	for path, typ := range pending {
		changes = append(changes, Change{Path: path, Type: typ})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()
	if callback != nil {
		callback(changes)
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// classify reports whether path is a component or state file.
func (w *Watcher) classify(path string) (ChangeType, bool) {
	if w.shouldIgnore(path) {
		return 0, false
	}
	name := filepath.Base(path)
	if matchAny(w.config.Patterns, name) {
		return ChangeSource, true
	}
	if strings.EqualFold(filepath.Ext(name), StateExt) {
		return ChangeState, true
	}
	return 0, false
}

// shouldIgnore checks a path against the ignore patterns: a glob matches
// the base name, or the slash path if it contains a separator; a plain
// name matches any path segment.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/")
		if strings.ContainsAny(pattern, "*?[") {
			target := name
			if hasPathSep {
				target = normalized
			}
			if ok, _ := filepath.Match(pattern, target); ok {
				return true
			}
			continue
		}
		if hasPathSep {
			if pathMatchesSegments(normalized, pattern) {
				return true
			}
			continue
		}
		if pathHasSegment(normalized, pattern) {
			return true
		}
	}
	return false
}

func pathHasSegment(path, segment string) bool {
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}
	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitPathSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

// Watch reloads p after every batch of changes and hands the report to
// fn. It blocks until ctx is done.
func (p *Project) Watch(ctx context.Context, debounce time.Duration, fn func([]Change, *Report, error)) error {
	w := NewWatcher(WatcherConfig{
		Dir:      p.opts.Dir,
		Patterns: p.opts.Patterns,
		Debounce: debounce,
		Logger:   p.logger,
	})
	w.OnChange(func(changes []Change) {
		report, err := p.Load()
		if fn != nil {
			fn(changes, report, err)
		}
	})
	return w.Start(ctx)
}
