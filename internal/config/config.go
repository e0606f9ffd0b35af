package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/pkg/template"
)

// ConfigName is the base name of the project configuration file. Both
// villain.yaml and villain.json are recognized.
const ConfigName = "villain"

// EnvPrefix prefixes environment overrides: VILLAIN_SERVER_ADDRESS sets
// server.address.
const EnvPrefix = "VILLAIN"

var configFiles = []string{ConfigName + ".yaml", ConfigName + ".yml", ConfigName + ".json"}

// Default values.
const (
	DefaultComponentsDir = "components"
	DefaultWhitespace    = "condense"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultAddress       = ":8080"
	DefaultRoot          = "App"
	DefaultResumeWindow  = 2 * time.Minute
	DefaultHistorySize   = 100
)

// DefaultPatterns match single-file components and plain templates.
var DefaultPatterns = []string{"*.vue", "*.html"}

// Config is the project configuration.
type Config struct {
	Components ComponentsConfig `mapstructure:"components" yaml:"components"`
	// Whitespace is the text whitespace policy: condense, preserve or trim.
	Whitespace string          `mapstructure:"whitespace" yaml:"whitespace"`
	Log        LogConfig       `mapstructure:"log" yaml:"log"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Server     ServerConfig    `mapstructure:"server" yaml:"server"`

	// configPath is where the config was loaded from, empty for defaults.
	configPath string
	dir        string
}

// ComponentsConfig locates component sources.
type ComponentsConfig struct {
	Dir      string   `mapstructure:"dir" yaml:"dir"`
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
	Exclude  []string `mapstructure:"exclude" yaml:"exclude,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SchedulerConfig tunes the update engine.
type SchedulerConfig struct {
	// MaxRendersPerTick bounds the renders of one tick; 0 means no limit.
	MaxRendersPerTick int `mapstructure:"max_renders_per_tick" yaml:"max_renders_per_tick"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	Root         string        `mapstructure:"root" yaml:"root"`
	Title        string        `mapstructure:"title" yaml:"title,omitempty"`
	StyleSheets  []string      `mapstructure:"stylesheets" yaml:"stylesheets,omitempty"`
	MaxSessions  int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	ResumeWindow time.Duration `mapstructure:"resume_window" yaml:"resume_window"`
	HistorySize  int           `mapstructure:"history_size" yaml:"history_size"`
	Metrics      bool          `mapstructure:"metrics" yaml:"metrics"`
	Dev          bool          `mapstructure:"dev" yaml:"dev"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("components.dir", DefaultComponentsDir)
	v.SetDefault("components.patterns", DefaultPatterns)
	v.SetDefault("components.exclude", []string{})
	v.SetDefault("whitespace", DefaultWhitespace)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("scheduler.max_renders_per_tick", 0)
	v.SetDefault("server.address", DefaultAddress)
	v.SetDefault("server.root", DefaultRoot)
	v.SetDefault("server.title", "")
	v.SetDefault("server.stylesheets", []string{})
	v.SetDefault("server.max_sessions", 0)
	v.SetDefault("server.resume_window", DefaultResumeWindow)
	v.SetDefault("server.history_size", DefaultHistorySize)
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.dev", false)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"components":    "components.dir",
	"whitespace":    "whitespace",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"max-renders":   "scheduler.max_renders_per_tick",
	"addr":          "server.address",
	"root":          "server.root",
	"title":         "server.title",
	"max-sessions":  "server.max_sessions",
	"resume-window": "server.resume_window",
	"dev":           "server.dev",
}

// RegisterFlags declares the flags shared by every command on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default: villain.yaml in the project root)")
	fs.String("components", "", "component directory")
	fs.String("whitespace", "", "whitespace policy: condense, preserve or trim")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: text or json")
}

// Options select where Load reads from.
type Options struct {
	// File is an explicit config file. When empty, Dir is searched for
	// villain.yaml or villain.json and defaults apply if there is none.
	File string
	Dir  string
	// Flags override file and environment values for the flags that were
	// set. Flags are matched by name; unknown flags are ignored.
	Flags *pflag.FlagSet
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Components: ComponentsConfig{
			Dir:      DefaultComponentsDir,
			Patterns: append([]string(nil), DefaultPatterns...),
		},
		Whitespace: DefaultWhitespace,
		Log:        LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Server: ServerConfig{
			Address:      DefaultAddress,
			Root:         DefaultRoot,
			ResumeWindow: DefaultResumeWindow,
			HistorySize:  DefaultHistorySize,
			Metrics:      true,
		},
	}
}

// Load reads the configuration: defaults, then the config file, then
// VILLAIN_* environment variables, then flags.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	file := opts.File
	if file == "" && opts.Flags != nil {
		if f := opts.Flags.Lookup("config"); f != nil {
			file = f.Value.String()
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New("V060").WithDetail(err.Error()).Wrap(err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("V060").WithDetail(err.Error()).Wrap(err)
	}
	cfg.configPath = v.ConfigFileUsed()
	if cfg.configPath != "" {
		cfg.dir = filepath.Dir(cfg.configPath)
	} else {
		cfg.dir = dir
	}
	if abs, err := filepath.Abs(cfg.dir); err == nil {
		cfg.dir = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks every value and reports the first invalid one.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("V061").WithDetail(fmt.Sprintf(format, args...))
	}

	if c.Components.Dir == "" {
		return invalid("components.dir is empty")
	}
	if len(c.Components.Patterns) == 0 {
		return invalid("components.patterns is empty")
	}
	for _, p := range append(append([]string(nil), c.Components.Patterns...), c.Components.Exclude...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return invalid("bad pattern %q: %v", p, err)
		}
	}
	if _, err := template.ParseWhitespace(c.Whitespace); err != nil {
		return invalid("whitespace: %v", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Scheduler.MaxRendersPerTick < 0 {
		return invalid("scheduler.max_renders_per_tick must not be negative")
	}
	if c.Server.Address == "" {
		return invalid("server.address is empty")
	}
	if c.Server.Root == "" {
		return invalid("server.root is empty")
	}
	if c.Server.MaxSessions < 0 || c.Server.HistorySize < 0 || c.Server.ResumeWindow < 0 {
		return invalid("server limits must not be negative")
	}
	return nil
}

// WhitespacePolicy returns the parsed whitespace policy.
func (c *Config) WhitespacePolicy() template.Whitespace {
	w, _ := template.ParseWhitespace(c.Whitespace)
	return w
}

// Path returns the file the config was loaded from, empty for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project directory.
func (c *Config) Dir() string {
	return c.dir
}

// ComponentsPath returns the component directory, resolved against the
// project directory.
func (c *Config) ComponentsPath() string {
	if filepath.IsAbs(c.Components.Dir) {
		return c.Components.Dir
	}
	return filepath.Join(c.dir, c.Components.Dir)
}

// WriteFile writes the configuration as YAML.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("V060").WithDetail(err.Error()).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	c.configPath = path
	c.dir = filepath.Dir(path)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}

// NewLogger builds the logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	for _, name := range configFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up from startDir to the first directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("V062").
				WithDetail("no villain.yaml or villain.json in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the configuration of the project containing the
// working directory, falling back to defaults rooted at the working
// directory when there is no config file.
func LoadFromWorkingDir(flags *pflag.FlagSet) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		root = wd
	}
	return Load(Options{Dir: root, Flags: flags})
}
