package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/villain/internal/config"
	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		force    bool
		template string
		title    string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a project from a starter template",
		Long: `Create villain.yaml and a components directory filled from a
starter template.

Templates:
  minimal   A single App component with a text input
  counter   An App composing a Counter through props and events (default)
  list      A keyed list with a filter

Examples:
  villain init
  villain init my-app --template list --title "My tasks"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, template, title, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().StringVarP(&template, "template", "t", templates.Default, "Starter template")
	cmd.Flags().StringVar(&title, "title", "", "Title shown by the App component (default: the directory name)")
	return cmd
}

func runInit(cmd *cobra.Command, dir, name, title string, force bool) error {
	out := cmd.OutOrStdout()
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	tmpl, err := templates.Get(name)
	if err != nil {
		return err
	}
	if config.Exists(dir) && !force {
		return errors.New("V081").
			WithDetail(dir + " already holds a villain configuration").
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	components := filepath.Join(dir, cfg.Components.Dir)
	if err := os.MkdirAll(components, 0o755); err != nil {
		return err
	}
	if err := cfg.WriteFile(filepath.Join(dir, config.ConfigName+".yaml")); err != nil {
		return err
	}
	success(out, "Created %s", cfg.Path())

	project := filepath.Base(dir)
	if title == "" {
		title = project
	}
	written, err := tmpl.Create(components, templates.Config{ProjectName: project, Title: title}, force)
	for _, path := range written {
		success(out, "Created %s", path)
	}
	if err != nil {
		return err
	}
	if kept := len(tmpl.Files) - len(written); kept > 0 {
		warn(out, "Kept %d existing files in %s", kept, components)
	}

	fmt.Fprintln(out)
	info(out, "Next: villain serve --dev")
	return nil
}
