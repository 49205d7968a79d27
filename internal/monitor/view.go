package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/ui"
)

// Column widths for the node and edge tables.
const (
	nameWidth    = 24
	stateWidth   = 10
	counterWidth = 10
	edgeWidth    = 32
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.viewportReady {
		b.WriteString(m.body.View())
	} else {
		b.WriteString(m.bodyContent(m.contentWidth()))
	}

	if m.ShowFooter() {
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
	}

	return b.String()
}

// refreshBody pushes the current tables into the viewport.
func (m *Model) refreshBody() {
	if !m.viewportReady {
		return
	}
	m.body.SetContent(m.bodyContent(m.contentWidth()))
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return m.width
}

// renderHeader renders the title, target, connection indicator and cycle count.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("teleop")

	target := fmt.Sprintf("pid %d", m.opts.PID)
	if m.opts.Host != "" {
		target += " @ " + m.opts.Host
	}

	indicator := m.Indicator()
	status := indicator.Render()
	if indicator == ui.IndicatorNeutral {
		status = lipgloss.NewStyle().Foreground(indicator.Color()).
			Render(m.ConnectingSpinner() + " " + indicator.Label())
	}

	stats := LabelStyle.Render(fmt.Sprintf(" | %s | ", target)) +
		status +
		LabelStyle.Render(fmt.Sprintf(" | cycle %d", m.cycle))
	if m.opts.Interval > 0 {
		stats += LabelStyle.Render(fmt.Sprintf(" | every %s", m.opts.Interval))
	}

	return HeaderStyle.Render(title + stats)
}

// bodyContent renders the node and edge sections.
func (m Model) bodyContent(width int) string {
	if m.err != nil && m.cycle == 0 {
		return m.renderError(width)
	}
	if len(m.topology.Nodes) == 0 {
		if m.phase == poll.PhaseDisconnected {
			return MutedStyle.Render("  Session ended before the pipeline graph arrived")
		}
		return MutedStyle.Render("  " + m.ConnectingSpinner() + " Waiting for the pipeline graph...")
	}

	var sections []string
	sections = append(sections, m.renderNodes(width))
	if len(m.topology.Edges) > 0 {
		sections = append(sections, m.renderEdges(width))
	}
	if m.err != nil {
		sections = append(sections, m.renderError(width))
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderNodes(width int) string {
	var lines []string
	lines = append(lines, SectionHeader("Nodes", strconv.Itoa(len(m.topology.Nodes)), width))
	lines = append(lines, SectionContentLine(LabelStyle.Render(
		cell("NAME", nameWidth)+cell("STATE", stateWidth)+
			rcell("READ", counterWidth)+rcell("WRITTEN", counterWidth)), width))

	for _, id := range m.topology.Nodes {
		status, seen := m.snapshot[id]
		state := "-"
		color := render.ColorIdle
		if seen && status.State != nil {
			state = status.State.String()
			color = render.NodeColor(status)
		}
		if f, ok := status.State.(pipeline.Failed); ok && f.Detail != "" {
			state = "error"
		}

		line := ValueStyle.Render(cell(string(id), nameWidth)) +
			hexStyle(color).Render(cell(state, stateWidth)) +
			rcell(formatCount(sum(status.InputRead)), counterWidth) +
			rcell(formatCount(sum(status.OutputWritten)), counterWidth)
		lines = append(lines, SectionContentLine(line, width))

		if f, ok := status.State.(pipeline.Failed); ok && f.Detail != "" {
			lines = append(lines, SectionContentLine(
				hexStyle(render.ColorError).Render("  "+f.Detail), width))
		}
	}

	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

func (m Model) renderEdges(width int) string {
	var lines []string
	lines = append(lines, SectionHeader("Edges", strconv.Itoa(len(m.topology.Edges)), width))
	lines = append(lines, SectionContentLine(LabelStyle.Render(
		cell("EDGE", edgeWidth)+rcell("WRITTEN", counterWidth)+
			rcell("READ", counterWidth)+rcell("BACKLOG", counterWidth)), width))

	for _, e := range m.topology.Edges {
		flow := render.FlowOf(e, m.snapshot)

		backlog := "-"
		style := MutedStyle
		if d, ok := flow.Backlog(); ok {
			backlog = formatCount(&d)
			style = hexStyle(m.opts.Policy.Classify(d).Color())
		}

		line := ValueStyle.Render(cell(e.String(), edgeWidth)) +
			rcell(formatCount(flow.Written), counterWidth) +
			rcell(formatCount(flow.Read), counterWidth) +
			style.Render(rcell(backlog, counterWidth))
		lines = append(lines, SectionContentLine(line, width))
	}

	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

func (m Model) renderError(width int) string {
	msg := ui.ErrorStyle().Render(ui.SymbolFail + " " + errors.Summary(m.err))
	return lipgloss.NewStyle().Width(width).Padding(0, 2).Render(msg)
}

// renderFooter renders the output file, image dimensions, scale and key hints.
func (m Model) renderFooter() string {
	var parts []string

	if m.opts.File != nil {
		out := fmt.Sprintf("out %s (%s)", m.opts.File.Path(), m.opts.File.Format())
		if m.writeErr != nil {
			out = ui.ErrorStyle().Render(ui.SymbolFail + " " + errors.Summary(m.writeErr))
		}
		parts = append(parts, out)
	}

	if m.graph.Width > 0 {
		w, h := render.Scaled(m.graph.Width, m.graph.Height, m.scale)
		parts = append(parts, fmt.Sprintf("%dx%dpt", m.graph.Width, m.graph.Height))
		parts = append(parts, fmt.Sprintf("scale %d%% (%dx%d)", m.scale, w, h))
	} else {
		parts = append(parts, fmt.Sprintf("scale %d%%", m.scale))
	}

	parts = append(parts, "q quit", "+/- scale", "? help")
	return FooterStyle.Render(strings.Join(parts, " | "))
}

// sum totals the observed slots of a counter list, or nil when none are.
func sum(counters []*int64) *int64 {
	var total int64
	seen := false
	for _, c := range counters {
		if c != nil {
			total += *c
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}

func formatCount(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}
