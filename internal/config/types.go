package config

import (
	"os"
	"sort"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Poll and render defaults.
const (
	DefaultPollInterval   = 3000 * time.Millisecond
	DefaultConnectTimeout = 10 * time.Second
	DefaultAttachTimeout  = 5 * time.Second

	// MinPollInterval guards against hammering the observed process.
	MinPollInterval = 100 * time.Millisecond

	DefaultBacklogWarn     int64 = 10
	DefaultBacklogCritical int64 = 42

	DefaultDotPath = "dot"
	DefaultScale   = 100
	MinScale       = 10
	MaxScale       = 200
	ScaleStep      = 10

	DefaultServeAddr = ":7878"
)

// Color schemes accepted by render.scheme.
const (
	SchemeAuto  = "auto"
	SchemeLight = "light"
	SchemeDark  = "dark"
)

// Config represents the complete .teleop.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Poll      PollConfig      `yaml:"poll" mapstructure:"poll"`
	Backlog   BacklogConfig   `yaml:"backlog" mapstructure:"backlog"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Hosts     map[string]Host `yaml:"hosts" mapstructure:"hosts"`
	Serve     ServeConfig     `yaml:"serve" mapstructure:"serve"`
}

// PollConfig controls the poll loop.
type PollConfig struct {
	// Interval is the delay between the end of one cycle and the next fetch.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// ConnectTimeout bounds dialing plus the initial topology fetch.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// BacklogConfig holds the edge backlog thresholds. A backlog below Warn is
// healthy, below Critical is a warning, anything else is critical.
type BacklogConfig struct {
	Warn     int64 `yaml:"warn" mapstructure:"warn"`
	Critical int64 `yaml:"critical" mapstructure:"critical"`
}

// RenderConfig controls DOT generation and image rendering.
type RenderConfig struct {
	// DotPath is the Graphviz binary used to produce SVG.
	DotPath string `yaml:"dot_path" mapstructure:"dot_path"`

	// Scheme is auto, light or dark.
	Scheme string `yaml:"scheme" mapstructure:"scheme"`

	// Scale is the display percentage applied to the rendered image.
	Scale int `yaml:"scale" mapstructure:"scale"`
}

// TransportConfig controls how local pipeline processes are reached.
type TransportConfig struct {
	// SocketDir holds the per-process .teleop_pid<N> sockets.
	SocketDir string `yaml:"socket_dir" mapstructure:"socket_dir"`

	// AttachTimeout is how long to wait for a process to open its socket
	// after being signalled.
	AttachTimeout time.Duration `yaml:"attach_timeout" mapstructure:"attach_timeout"`
}

// Host defines a remote machine whose pipeline processes can be observed.
type Host struct {
	// SSH connection strings, tried in order until one succeeds.
	// Can be: hostname, user@hostname, or SSH config alias.
	SSH []string `yaml:"ssh" mapstructure:"ssh"`

	// SocketDir overrides transport.socket_dir on the remote side.
	SocketDir string `yaml:"socket_dir" mapstructure:"socket_dir"`
}

// ServeConfig controls the HTTP viewer.
type ServeConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Poll: PollConfig{
			Interval:       DefaultPollInterval,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Backlog: BacklogConfig{
			Warn:     DefaultBacklogWarn,
			Critical: DefaultBacklogCritical,
		},
		Render: RenderConfig{
			DotPath: DefaultDotPath,
			Scheme:  SchemeAuto,
			Scale:   DefaultScale,
		},
		Transport: TransportConfig{
			SocketDir:     os.TempDir(),
			AttachTimeout: DefaultAttachTimeout,
		},
		Hosts: make(map[string]Host),
		Serve: ServeConfig{
			Addr: DefaultServeAddr,
		},
	}
}

// HostNames returns the configured host names in sorted order.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StepScale moves scale by steps increments of ScaleStep, clamped to
// MinScale..MaxScale.
func StepScale(scale, steps int) int {
	scale += steps * ScaleStep
	if scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}
