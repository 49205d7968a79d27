package config

import (
	"fmt"
	"regexp"

	"github.com/rileyhilliard/teleop/internal/errors"
)

var hostNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but teleop only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest teleop release")
	}

	if err := validatePoll(cfg.Poll); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'poll' section in your .teleop.yaml.")
	}

	if err := validateBacklog(cfg.Backlog); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'backlog' section in your .teleop.yaml.")
	}

	if err := validateRender(cfg.Render); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'render' section in your .teleop.yaml.")
	}

	if cfg.Transport.SocketDir == "" {
		return errors.New(errors.ErrConfig,
			"transport.socket_dir is empty",
			"Set it to the directory where pipeline processes create their sockets.")
	}

	for _, name := range cfg.HostNames() {
		if err := validateHost(name, cfg.Hosts[name]); err != nil {
			return err
		}
	}

	return nil
}

func validatePoll(p PollConfig) error {
	if p.Interval < MinPollInterval {
		return fmt.Errorf("poll.interval %s is below the %s minimum", p.Interval, MinPollInterval)
	}
	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("poll.connect_timeout must be positive, got %s", p.ConnectTimeout)
	}
	return nil
}

func validateBacklog(b BacklogConfig) error {
	if b.Warn < 0 {
		return fmt.Errorf("backlog.warn must not be negative, got %d", b.Warn)
	}
	if b.Warn >= b.Critical {
		return fmt.Errorf("backlog.warn (%d) must be lower than backlog.critical (%d)", b.Warn, b.Critical)
	}
	return nil
}

func validateRender(r RenderConfig) error {
	if r.DotPath == "" {
		return fmt.Errorf("render.dot_path is empty")
	}
	if err := ValidateScheme(r.Scheme); err != nil {
		return err
	}
	return ValidateScale(r.Scale)
}

// ValidateScheme accepts auto, light and dark.
func ValidateScheme(scheme string) error {
	switch scheme {
	case SchemeAuto, SchemeLight, SchemeDark:
		return nil
	}
	return fmt.Errorf("unknown color scheme %q (want auto, light or dark)", scheme)
}

// ValidateScale accepts percentages from MinScale to MaxScale in ScaleStep steps.
func ValidateScale(scale int) error {
	if scale < MinScale || scale > MaxScale || scale%ScaleStep != 0 {
		return fmt.Errorf("scale %d%% is not one of %d..%d in steps of %d", scale, MinScale, MaxScale, ScaleStep)
	}
	return nil
}

func validateHost(name string, host Host) error {
	if !hostNamePattern.MatchString(name) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host name '%s' has characters that won't work", name),
			"Stick to letters, numbers, dots, dashes and underscores.")
	}
	if len(host.SSH) == 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' has no SSH targets", name),
			"Add at least one entry under 'ssh', like 'user@hostname' or an SSH config alias.")
	}
	for _, target := range host.SSH {
		if target == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has an empty SSH target", name),
				"Remove the blank entry from its 'ssh' list.")
		}
	}
	return nil
}
