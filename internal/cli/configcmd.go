package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/ui"
	"github.com/rileyhilliard/teleop/internal/util"
	"github.com/rileyhilliard/teleop/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	initForce  bool
	initGlobal bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the teleop config",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config as YAML",
	Long: `Print the config teleop would use here, with defaults and TELEOP_*
environment overrides applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		return showConfig(cmd.OutOrStdout(), cfg, path)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .teleop.yaml",
	Long: `Write a config file with every setting at its default. On a terminal,
you can pick hosts from ~/.ssh/config to observe remotely.

Examples:
  teleop config init
  teleop config init --global
  teleop config init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName
		if initGlobal {
			home, err := os.UserHomeDir()
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig, "Can't find your home directory", "")
			}
			path = filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile)
		}

		interactive := stdinIsTerminal() && stdoutIsTerminal()
		prompts := initPrompts{}
		if interactive {
			prompts = initPrompts{confirm: confirmOverwrite, pickHosts: pickSSHHosts, listHosts: sshutil.ConfiguredHosts}
		}
		return initConfig(cmd.OutOrStdout(), path, initForce, prompts)
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	configInitCmd.Flags().BoolVar(&initGlobal, "global", false, "write ~/.config/teleop/config.yaml")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func showConfig(w io.Writer, cfg *config.Config, path string) error {
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	source := path
	if source == "" {
		source = "defaults"
	}
	if _, err := fmt.Fprintf(w, "# source: %s\n", source); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// initPrompts are the interactive steps of config init. Nil functions are
// skipped, which is how non-interactive runs behave.
type initPrompts struct {
	confirm   func(path string) (bool, error)
	pickHosts func(entries []sshutil.HostEntry) ([]string, error)
	listHosts func() ([]sshutil.HostEntry, error)
}

func initConfig(w io.Writer, path string, force bool, prompts initPrompts) error {
	if _, err := os.Stat(path); err == nil && !force {
		if prompts.confirm == nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}
		ok, err := prompts.confirm(path)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()

	if prompts.listHosts != nil && prompts.pickHosts != nil {
		entries, err := prompts.listHosts()
		if err == nil && len(entries) > 0 {
			chosen, err := prompts.pickHosts(entries)
			if err != nil {
				return err
			}
			for _, alias := range chosen {
				cfg.Hosts[alias] = config.Host{SSH: []string{alias}}
			}
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	if len(cfg.Hosts) > 0 {
		fmt.Fprintf(w, "  %s configured; try: teleop list --host %s\n",
			util.Count(len(cfg.Hosts), "host", "hosts"), cfg.HostNames()[0])
	}
	return nil
}

func confirmOverwrite(path string) (bool, error) {
	var overwrite bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
				Value(&overwrite),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Try running with --force to overwrite")
	}
	return overwrite, nil
}

func pickSSHHosts(entries []sshutil.HostEntry) ([]string, error) {
	options := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", e.Alias, e.Description()), e.Alias))
	}

	var chosen []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Hosts to observe remotely").
				Description("From ~/.ssh/config. Leave empty to watch local processes only.").
				Options(options...).
				Value(&chosen),
		),
	)
	if err := form.Run(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Edit the hosts section of the config file by hand")
	}
	return chosen, nil
}
