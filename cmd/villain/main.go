package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/villain/internal/config"
	"github.com/vango-dev/villain/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "villain",
		Short: "Compile and run reactive component templates",
		Long: `Villain compiles Vue-style component templates into render
procedures and runs them on a reactive update engine.

  • check    compile every component and report diagnostics
  • render   mount a component and print its ops and HTML
  • watch    recompile on every change
  • serve    stream live components to browsers over WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		initCmd(),
		checkCmd(),
		renderCmd(),
		watchCmd(),
		serveCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads the configuration of the enclosing project, honoring
// the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadFromWorkingDir(cmd.Flags())
}

func paint(code, s string) string {
	if !errors.ColorsEnabled() {
		return s
	}
	return code + s + "\033[0m"
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", paint("\033[32m", "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", paint("\033[33m", "⚠"), fmt.Sprintf(format, args...))
}
