package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vango-dev/villain/internal/config"
	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/internal/project"
	"github.com/vango-dev/villain/pkg/compiler"
)

func checkCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile every component and report diagnostics",
		Long: `Compile every component of the project and print a diagnostic for
each one that fails. Exits non-zero when any component fails.

Examples:
  villain check
  villain check --components ./ui --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print diagnostics as JSON lines")
	return cmd
}

// workspace is a loaded configuration with its project compiled once.
type workspace struct {
	cfg     *config.Config
	project *project.Project
	report  *project.Report
	logger  *slog.Logger
}

func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	p := project.New(compiler.NewRegistry(), project.OptionsFrom(cfg, logger))
	report, err := p.Load()
	if err != nil {
		return nil, err
	}
	if len(report.Compiled)+len(report.Errors) == 0 {
		return nil, errors.New("V080").WithDetail("nothing matched in " + p.Dir())
	}
	return &workspace{cfg: cfg, project: p, report: report, logger: logger}, nil
}

func runCheck(cmd *cobra.Command, asJSON bool) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	report := ws.report

	out := cmd.OutOrStdout()
	if asJSON {
		for _, e := range report.Errors {
			fmt.Fprintln(out, e.FormatJSON())
		}
	} else {
		for _, e := range report.Errors {
			errors.Fprint(cmd.ErrOrStderr(), e)
		}
		for _, name := range report.Compiled {
			success(out, "%s", name)
		}
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d components failed to compile",
			len(report.Errors), len(report.Errors)+len(report.Compiled))
	}
	if !asJSON {
		info(out, "%d components compiled", len(report.Compiled))
	}
	return nil
}
