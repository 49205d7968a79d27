package cli

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/ui"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "teleop",
	Short: "Watch a running pipeline's execution graph",
	Long: `teleop attaches to a running pipeline process, polls its execution
graph and node statuses, and renders the graph with live state and
per-edge backlog.

Processes are found through their .teleop_pid<N> sockets, locally or on a
configured remote host over SSH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			_ = os.Setenv(logger.DebugEnv, "1")
		}
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .teleop.yaml, searched upwards)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// Execute runs the root command and exits with the command's status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(err))
	}
}

// reportError prints err unless it only carries an exit code, and returns
// the exit status.
func reportError(err error) int {
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
