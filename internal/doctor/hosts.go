package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/rileyhilliard/teleop/internal/util"
)

// DefaultHostTimeout bounds each host check.
const DefaultHostTimeout = 10 * time.Second

// HostCheck connects to a configured host and lists its processes.
type HostCheck struct {
	HostName string
	Host     config.Host
	Dir      string // socket directory when the host does not override it
	Timeout  time.Duration

	connect transport.Connector
}

func (c *HostCheck) Name() string     { return "host_" + c.HostName }
func (c *HostCheck) Category() string { return CategoryHosts }

func (c *HostCheck) Run(ctx context.Context) CheckResult {
	if len(c.Host.SSH) == 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: no SSH targets", c.HostName),
			Suggestion: fmt.Sprintf("Add an ssh entry under hosts.%s", c.HostName),
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultHostTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := c.Host.SocketDir
	if dir == "" {
		dir = c.Dir
	}
	dialer := transport.NewSSHDialer(c.HostName, c.Host.SSH, dir, 0, c.connect, nil)
	procs, err := dialer.Discover(ctx)
	if err != nil {
		suggestion := "Check the host is reachable: ssh " + c.Host.SSH[0]
		var e *errors.Error
		if stderrors.As(err, &e) && e.Suggestion != "" {
			suggestion = e.Suggestion
		}
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: %s", c.HostName, errors.Summary(err)),
			Suggestion: suggestion,
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s in %s", c.HostName, util.Count(len(procs), "observable process", "observable processes"), dir),
	}
}

// NewChecks builds the full check list for cfg, found at configPath.
func NewChecks(configPath string, cfg *config.Config) []Check {
	checks := []Check{&ConfigCheck{ConfigPath: configPath}}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	checks = append(checks,
		NewGraphvizCheck(cfg.Render.DotPath),
		NewSocketDirCheck(cfg.Transport.SocketDir),
	)
	for _, name := range cfg.HostNames() {
		checks = append(checks, &HostCheck{
			HostName: name,
			Host:     cfg.Hosts[name],
			Dir:      cfg.Transport.SocketDir,
		})
	}
	return checks
}
