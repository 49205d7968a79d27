package render

import (
	"fmt"

	"github.com/rileyhilliard/teleop/internal/config"
)

// Palette shared by nodes and edges.
const (
	ColorIdle    = "#59636e"
	ColorActive  = "#dbab0a"
	ColorSuccess = "#1a7f37"
	ColorError   = "#d1242f"
)

// Scheme picks the default font and stroke color so the graph stays legible
// on a transparent background.
type Scheme int

const (
	SchemeLight Scheme = iota
	SchemeDark
)

// Foreground is the default node and edge color for the scheme.
func (s Scheme) Foreground() string {
	if s == SchemeDark {
		return "white"
	}
	return "black"
}

func (s Scheme) String() string {
	if s == SchemeDark {
		return config.SchemeDark
	}
	return config.SchemeLight
}

// ParseScheme resolves a configured scheme name. For "auto", darkBackground
// decides.
func ParseScheme(name string, darkBackground func() bool) (Scheme, error) {
	switch name {
	case config.SchemeLight:
		return SchemeLight, nil
	case config.SchemeDark:
		return SchemeDark, nil
	case config.SchemeAuto, "":
		if darkBackground != nil && darkBackground() {
			return SchemeDark, nil
		}
		return SchemeLight, nil
	}
	return SchemeLight, fmt.Errorf("unknown color scheme %q", name)
}

// Severity classifies an edge backlog.
type Severity int

const (
	SeverityHealthy Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	}
	return "healthy"
}

// Color is the edge color for the severity.
func (s Severity) Color() string {
	switch s {
	case SeverityWarning:
		return ColorActive
	case SeverityCritical:
		return ColorError
	}
	return ColorSuccess
}

// BacklogPolicy holds the thresholds between severities. Warn must be lower
// than Critical.
type BacklogPolicy struct {
	Warn     int64
	Critical int64
}

// DefaultPolicy returns the 10/42 thresholds.
func DefaultPolicy() BacklogPolicy {
	return BacklogPolicy{
		Warn:     config.DefaultBacklogWarn,
		Critical: config.DefaultBacklogCritical,
	}
}

// PolicyFrom reads the thresholds from config.
func PolicyFrom(cfg config.BacklogConfig) BacklogPolicy {
	return BacklogPolicy{Warn: cfg.Warn, Critical: cfg.Critical}
}

// Classify maps a backlog to its severity.
func (p BacklogPolicy) Classify(backlog int64) Severity {
	switch {
	case backlog < p.Warn:
		return SeverityHealthy
	case backlog < p.Critical:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}
