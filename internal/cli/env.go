package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/rileyhilliard/teleop/internal/util"
	"golang.org/x/term"
)

// stdoutIsTerminal reports whether stdout is an interactive terminal.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// stdinIsTerminal reports whether prompts can be answered.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// loadConfig finds, loads and validates the effective config.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// target is where processes are looked up and dialed: this machine, or a
// configured remote host.
type target struct {
	host     string // empty for local
	dialer   transport.Dialer
	discover func(ctx context.Context) ([]transport.Process, error)
}

// resolveTarget builds the target for hostName, or the local machine when
// hostName is empty.
func resolveTarget(cfg *config.Config, hostName string, log logger.Logger) (*target, error) {
	if hostName == "" {
		dir := cfg.Transport.SocketDir
		return &target{
			dialer: transport.NewUnixDialer(dir, cfg.Transport.AttachTimeout, log),
			discover: func(context.Context) ([]transport.Process, error) {
				return transport.Discover(dir)
			},
		}, nil
	}

	host, ok := cfg.Hosts[hostName]
	if !ok {
		suggestion := "Configured hosts: " + util.JoinOrDefault(cfg.HostNames(), "(none). Add one under 'hosts:' in .teleop.yaml")
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown host '%s'", hostName), suggestion)
	}

	dir := host.SocketDir
	if dir == "" {
		dir = cfg.Transport.SocketDir
	}
	d := transport.NewSSHDialer(hostName, host.SSH, dir, cfg.Transport.AttachTimeout, nil, log)
	return &target{host: hostName, dialer: d, discover: d.Discover}, nil
}

// session holds everything needed to start a scheduler for a pid.
type session struct {
	target         *target
	renderer       render.ImageRenderer
	scheme         render.Scheme
	policy         render.BacklogPolicy
	interval       time.Duration
	connectTimeout time.Duration
	metrics        *poll.Metrics
	log            logger.Logger
}

// newSession resolves the render settings from cfg. schemeName overrides
// render.scheme when set; auto asks the terminal unless darkBackground is nil.
func newSession(cfg *config.Config, tgt *target, schemeName string, darkBackground func() bool, log logger.Logger) (*session, error) {
	if schemeName == "" {
		schemeName = cfg.Render.Scheme
	}
	if darkBackground == nil {
		darkBackground = func() bool { return false }
	}
	scheme, err := render.ParseScheme(schemeName, darkBackground)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid color scheme '%s'", schemeName),
			"Use auto, light or dark")
	}

	return &session{
		target:         tgt,
		renderer:       render.NewGraphvizRenderer(cfg.Render.DotPath),
		scheme:         scheme,
		policy:         render.PolicyFrom(cfg.Backlog),
		interval:       cfg.Poll.Interval,
		connectTimeout: cfg.Poll.ConnectTimeout,
		log:            log,
	}, nil
}

// start runs one scheduler for pid until it ends or ctx is done.
func (s *session) start(ctx context.Context, pid int, sink poll.EventSink) (poll.Outcome, error) {
	sched, err := poll.New(poll.Options{
		PID:            pid,
		Dialer:         s.target.dialer,
		Renderer:       s.renderer,
		Scheme:         s.scheme,
		Policy:         s.policy,
		Interval:       s.interval,
		ConnectTimeout: s.connectTimeout,
		Sink:           sink,
		Metrics:        s.metrics,
		Logger:         s.log,
	})
	if err != nil {
		return poll.OutcomeFailed, errors.WrapWithCode(err, errors.ErrConfig, "Can't start watching", "")
	}
	return sched.Run(ctx)
}

// parseInterval validates a --interval value.
func parseInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid interval: %s", raw),
			"Use a valid duration like 500ms, 3s or 1m")
	}
	if d < config.MinPollInterval {
		return 0, errors.New(errors.ErrConfig,
			"Interval too short",
			fmt.Sprintf("Minimum interval is %s to avoid overwhelming the process", config.MinPollInterval))
	}
	return d, nil
}
