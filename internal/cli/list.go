package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/rileyhilliard/teleop/internal/ui"
	"github.com/spf13/cobra"
)

var (
	listHostFlag string
	listJSONFlag bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List observable pipeline processes",
	Long: `List the pipeline processes that expose a teleop socket, on this machine
or on a configured remote host.

Examples:
  teleop list
  teleop list --host etl
  teleop list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		tgt, err := resolveTarget(cfg, listHostFlag, logger.NewEnvLogger("[list]"))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return listCommand(ctx, cmd.OutOrStdout(), tgt, listJSONFlag)
	},
}

func init() {
	listCmd.Flags().StringVar(&listHostFlag, "host", "", "configured remote host to look on")
	listCmd.Flags().BoolVar(&listJSONFlag, "json", false, "output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// processJSON is one entry of `teleop list --json`.
type processJSON struct {
	PID     int    `json:"pid"`
	Host    string `json:"host,omitempty"`
	Command string `json:"command,omitempty"`
	Socket  string `json:"socket"`
}

func listCommand(ctx context.Context, w io.Writer, tgt *target, asJSON bool) error {
	procs, err := tgt.discover(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		entries := make([]processJSON, 0, len(procs))
		for _, p := range procs {
			entries = append(entries, processJSON{PID: p.PID, Host: p.Host, Command: p.Command, Socket: p.Socket})
		}
		out, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExec, "Failed to encode process list", "")
		}
		_, err = w.Write(append(out, '\n'))
		return err
	}

	if len(procs) == 0 {
		_, err = io.WriteString(w, ui.RenderProcessTable(procs)+"\n")
		return err
	}
	_, err = io.WriteString(w, ui.RenderProcessTable(procs)+ui.MutedStyle().Render(watchHint(procs))+"\n")
	return err
}

func watchHint(procs []transport.Process) string {
	hint := "teleop watch " + strconv.Itoa(procs[0].PID)
	if procs[0].Host != "" {
		hint = "teleop watch --host " + procs[0].Host + " " + strconv.Itoa(procs[0].PID)
	}
	return "\nWatch one with: " + hint
}
