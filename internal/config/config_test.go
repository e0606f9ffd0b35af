package config

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/pkg/template"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func code(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, DefaultComponentsDir, cfg.Components.Dir)
	assert.Equal(t, DefaultPatterns, cfg.Components.Patterns)
	assert.Empty(t, cfg.Components.Exclude)
	assert.Equal(t, DefaultWhitespace, cfg.Whitespace)
	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, DefaultRoot, cfg.Server.Root)
	assert.Equal(t, DefaultResumeWindow, cfg.Server.ResumeWindow)
	assert.True(t, cfg.Server.Metrics)
	assert.Empty(t, cfg.Path())
	assert.Equal(t, filepath.Join(cfg.Dir(), "components"), cfg.ComponentsPath())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "villain.yaml", `
components:
  dir: ui
  patterns: ["*.vue"]
whitespace: preserve
log:
  level: debug
  format: json
scheduler:
  max_renders_per_tick: 50
server:
  address: ":9090"
  root: Shell
  resume_window: 30s
  stylesheets: [/app.css]
`)

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "villain.yaml"), cfg.Path())
	assert.Equal(t, "ui", cfg.Components.Dir)
	assert.Equal(t, []string{"*.vue"}, cfg.Components.Patterns)
	assert.Equal(t, template.Preserve, cfg.WhitespacePolicy())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Scheduler.MaxRendersPerTick)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "Shell", cfg.Server.Root)
	assert.Equal(t, 30*time.Second, cfg.Server.ResumeWindow)
	assert.Equal(t, []string{"/app.css"}, cfg.Server.StyleSheets)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultHistorySize, cfg.Server.HistorySize)
	assert.Equal(t, filepath.Join(dir, "ui"), cfg.ComponentsPath())
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "villain.json", `{"whitespace": "trim", "server": {"root": "Main"}}`)

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, template.Trim, cfg.WhitespacePolicy())
	assert.Equal(t, "Main", cfg.Server.Root)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "staging.yaml", "server:\n  address: \":7000\"\n")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, dir, cfg.Dir())

	_, err = Load(Options{File: filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
	assert.Equal(t, "V060", code(err))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "villain.yaml", "server:\n  address: \":9000\"\n  root: FromFile\nlog:\n  level: warn\n")
	t.Setenv("VILLAIN_SERVER_ADDRESS", ":9001")
	t.Setenv("VILLAIN_SERVER_ROOT", "FromEnv")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.String("addr", "", "")
	fs.String("root", "", "")
	require.NoError(t, fs.Parse([]string{"--root", "FromFlag"}))

	cfg, err := Load(Options{Dir: dir, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, ":9001", cfg.Server.Address, "env overrides file")
	assert.Equal(t, "FromFlag", cfg.Server.Root, "flag overrides env")
	assert.Equal(t, "warn", cfg.Log.Level, "unset flags do not override")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "other.json", `{"server": {"root": "Other"}}`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))

	cfg, err := Load(Options{Dir: t.TempDir(), Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, "Other", cfg.Server.Root)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "villain.yaml", "server: [unclosed\n")

	_, err := Load(Options{Dir: dir})
	require.Error(t, err)
	assert.Equal(t, "V060", code(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"whitespace", func(c *Config) { c.Whitespace = "squash" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"pattern", func(c *Config) { c.Components.Patterns = []string{"[a-"} }},
		{"no patterns", func(c *Config) { c.Components.Patterns = nil }},
		{"negative renders", func(c *Config) { c.Scheduler.MaxRendersPerTick = -1 }},
		{"empty root", func(c *Config) { c.Server.Root = "" }},
		{"negative history", func(c *Config) { c.Server.HistorySize = -1 }},
	}

	require.NoError(t, New().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, "V061", code(err))
		})
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := New()
	cfg.Server.Root = "Counter"
	cfg.Server.ResumeWindow = 45 * time.Second
	require.NoError(t, cfg.WriteFile(filepath.Join(dir, "villain.yaml")))

	loaded, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "Counter", loaded.Server.Root)
	assert.Equal(t, 45*time.Second, loaded.Server.ResumeWindow)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "villain.yaml", "")
	nested := filepath.Join(root, "components", "forms")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	got, _ = filepath.EvalSymlinks(got)
	assert.Equal(t, want, got)

	_, err = FindProjectRoot(t.TempDir())
	if err != nil {
		assert.Equal(t, "V062", code(err))
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "component", "Counter")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"component":"Counter"`)
}
