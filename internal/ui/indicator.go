package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/teleop/internal/poll"
)

// Indicator is the connection state shown to the user for one watched
// process.
type Indicator int

const (
	IndicatorNeutral Indicator = iota
	IndicatorLive
	IndicatorFinished
	IndicatorError
	IndicatorStopped
)

// IndicatorFor maps a scheduler phase and outcome to an indicator.
func IndicatorFor(phase poll.Phase, outcome poll.Outcome) Indicator {
	switch phase {
	case poll.PhaseConnected, poll.PhasePolling:
		return IndicatorLive
	case poll.PhaseDisconnected:
		switch outcome {
		case poll.OutcomeFinished:
			return IndicatorFinished
		case poll.OutcomeFailed:
			return IndicatorError
		case poll.OutcomeCancelled:
			return IndicatorStopped
		}
	}
	return IndicatorNeutral
}

// Label is the short text shown next to the symbol.
func (i Indicator) Label() string {
	switch i {
	case IndicatorLive:
		return "connected"
	case IndicatorFinished:
		return "finished"
	case IndicatorError:
		return "error"
	case IndicatorStopped:
		return "stopped"
	default:
		return "connecting"
	}
}

// Symbol is the status glyph.
func (i Indicator) Symbol() string {
	switch i {
	case IndicatorLive:
		return SymbolComplete
	case IndicatorFinished:
		return SymbolSuccess
	case IndicatorError:
		return SymbolFail
	case IndicatorStopped:
		return SymbolPending
	default:
		return SymbolProgress
	}
}

// Color is the terminal color of the indicator.
func (i Indicator) Color() lipgloss.Color {
	switch i {
	case IndicatorLive:
		return ColorSuccess
	case IndicatorFinished:
		return ColorInfo
	case IndicatorError:
		return ColorError
	default:
		return ColorMuted
	}
}

// Render returns the colored symbol and label.
func (i Indicator) Render() string {
	return lipgloss.NewStyle().Foreground(i.Color()).Render(i.Symbol() + " " + i.Label())
}
