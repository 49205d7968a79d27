package doctor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
)

// ConfigCheck loads and validates the config file. A missing file passes,
// since every setting has a default.
type ConfigCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return CategoryConfig }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: "Check the --config path",
		}
	}

	if path == "" {
		return CheckResult{
			Status:     StatusPass,
			Message:    "No config file, using defaults",
			Suggestion: "Run 'teleop config init' to create one",
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Failed to load %s: %s", path, errors.Summary(err)),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}

	if err := config.Validate(cfg); err != nil {
		msg, suggestion := errors.Summary(err), ""
		var e *errors.Error
		if stderrors.As(err, &e) {
			msg, suggestion = e.Message, e.Suggestion
		}
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: %s", path, msg),
			Suggestion: suggestion,
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}
