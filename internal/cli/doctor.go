package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/doctor"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/ui"
	"github.com/spf13/cobra"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, Graphviz and connection issues",
	Long: `Run diagnostic checks to find what stops teleop from watching a process.

Checks:
  - Configuration validity
  - Graphviz dot renders SVG
  - Local socket directory and observable processes
  - SSH reachability of every configured host

Examples:
  teleop doctor
  teleop doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := config.Find(cfgFile)
		cfg, _, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			cfg = nil // the config check reports it
		}

		results := doctor.RunAll(cmd.Context(), doctor.NewChecks(path, cfg))

		if doctorJSON {
			if err := outputDoctorJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			outputDoctorText(cmd.OutOrStdout(), results)
		}

		if doctor.HasFailures(results) {
			return errors.NewExitError(1)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func outputDoctorJSON(w io.Writer, results []doctor.CheckResult) error {
	grouped := doctor.GroupByCategory(results)
	out := DoctorOutput{Categories: make([]CategoryOutput, 0, len(grouped))}
	for _, cat := range doctor.Categories {
		if rs, ok := grouped[cat]; ok {
			out.Categories = append(out.Categories, CategoryOutput{Name: cat, Results: rs})
		}
	}

	counts := doctor.CountByStatus(results)
	out.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}

	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Failed to encode report", "")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func outputDoctorText(w io.Writer, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprint(w, ui.RenderHeader(ui.HeaderInfo{Version: formatVersion(version), Tagline: "Diagnostic report"}))
	fmt.Fprintln(w)

	grouped := doctor.GroupByCategory(results)
	for _, category := range doctor.Categories {
		rs, ok := grouped[category]
		if !ok {
			continue
		}
		fmt.Fprintln(w, headerStyle.Render(category))
		for _, r := range rs {
			renderCheckResult(w, r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", ui.HeaderWidth))
	if doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), doctor.Summary(results))
	}
}

func renderCheckResult(w io.Writer, r doctor.CheckResult) {
	symbol, style := ui.SymbolComplete, ui.SuccessStyle()
	switch r.Status {
	case doctor.StatusWarn:
		style = ui.WarningStyle()
	case doctor.StatusFail:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), r.Message)
	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(r.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", ui.MutedStyle().Render(line))
		}
	}
}
