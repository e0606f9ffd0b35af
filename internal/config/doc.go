// Package config loads the project configuration.
//
// The configuration lives in villain.yaml (or villain.json) at the project
// root. Values are layered: built-in defaults, the config file, VILLAIN_*
// environment variables, then command-line flags.
//
// # Configuration Structure
//
//	components:
//	  dir: components
//	  patterns: ["*.vue", "*.html"]
//	  exclude: ["*_draft.vue"]
//	whitespace: condense
//	log:
//	  level: info
//	  format: text
//	scheduler:
//	  max_renders_per_tick: 0
//	server:
//	  address: ":8080"
//	  root: App
//	  title: Counter
//	  resume_window: 2m
//	  history_size: 100
//	  metrics: true
//
// # Usage
//
//	cfg, err := config.Load(config.Options{Dir: ".", Flags: cmd.Flags()})
//	if err != nil {
//	    return err
//	}
//	logger := cfg.Log.NewLogger(os.Stderr)
package config
