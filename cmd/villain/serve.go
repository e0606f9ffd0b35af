package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/internal/project"
	"github.com/vango-dev/villain/pkg/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the root component to browsers",
		Long: `Serve the root component: the page renders it to HTML and a small
client keeps it live over a WebSocket, sending events back to the server.

With --dev the components are recompiled on change; new sessions use the
new definitions.

Examples:
  villain serve
  villain serve --addr :3000 --root Dashboard --dev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "Address to listen on")
	flags.String("root", "", "Root component")
	flags.String("title", "", "Page title")
	flags.Int("max-sessions", 0, "Concurrent sessions (0 for no limit)")
	flags.Duration("resume-window", 0, "How long a disconnected session can resume")
	flags.Int("max-renders", 0, "Renders per tick (0 for no limit)")
	flags.Bool("dev", false, "Recompile on change and disable client caching")
	return cmd
}

// serverConfig maps the project configuration onto the server's.
func serverConfig(ws *workspace) *server.Config {
	cfg := ws.cfg
	sc := server.DefaultConfig()
	sc.Address = cfg.Server.Address
	sc.Root = cfg.Server.Root
	sc.Title = cfg.Server.Title
	sc.StyleSheets = cfg.Server.StyleSheets
	sc.MaxSessions = cfg.Server.MaxSessions
	sc.DevMode = cfg.Server.Dev
	sc.Session.ResumeWindow = cfg.Server.ResumeWindow
	sc.Session.HistorySize = cfg.Server.HistorySize
	sc.Session.MaxRendersPerTick = cfg.Scheduler.MaxRendersPerTick
	if !cfg.Server.Metrics {
		sc.MetricsPath = ""
	}
	sc.Logger = ws.logger
	sc.Registry = prometheus.NewRegistry()
	return sc
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	printReport(cmd, ws.report)

	cfg := ws.cfg
	reg := ws.project.Registry()
	if _, err := reg.Lookup(cfg.Server.Root); err != nil {
		return errors.FromError(err, "V022").
			WithSuggestion("Set server.root in villain.yaml or pass --root")
	}

	if cfg.Server.Dev {
		go func() {
			err := ws.project.Watch(ctx, 0, func(_ []project.Change, report *project.Report, err error) {
				if err != nil {
					ws.logger.Error("reload failed", "error", err)
					return
				}
				printReport(cmd, report)
			})
			if err != nil && ctx.Err() == nil {
				ws.logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(reg, serverConfig(ws))
	success(cmd.OutOrStdout(), "Serving %s on %s", cfg.Server.Root, cfg.Server.Address)
	return srv.ListenAndServe(ctx)
}
