package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/internal/project"
)

func watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile components on every change",
		Long: `Compile every component, then watch the components directory and
recompile after each change, printing diagnostics as they appear.

Examples:
  villain watch
  villain watch --debounce 250ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before recompiling")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printReport(cmd *cobra.Command, report *project.Report) {
	for _, e := range report.Errors {
		errors.Fprint(cmd.ErrOrStderr(), e)
	}
	if report.OK() {
		success(cmd.OutOrStdout(), "%d components compiled", len(report.Compiled))
	} else {
		warn(cmd.OutOrStdout(), "%d compiled, %d failed", len(report.Compiled), len(report.Errors))
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, debounce time.Duration) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printReport(cmd, ws.report)
	info(out, "watching %s", ws.project.Dir())

	err = ws.project.Watch(ctx, debounce, func(changes []project.Change, report *project.Report, err error) {
		for _, c := range changes {
			info(out, "%s changed: %s", c.Type, c.Path)
		}
		if err != nil {
			errors.Fprint(cmd.ErrOrStderr(), err)
			return
		}
		printReport(cmd, report)
	})
	if err == context.Canceled {
		fmt.Fprintln(out)
		return nil
	}
	return err
}
