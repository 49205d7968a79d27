package doctor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/render"
)

// sampleTopology is rendered to prove the binary produces usable SVG.
var sampleTopology = pipeline.Topology{
	Nodes: []pipeline.NodeID{"source", "sink"},
	Edges: []pipeline.Edge{{Tail: "source", Head: "sink"}},
}

// GraphvizCheck verifies the dot binary exists and renders a sample graph.
type GraphvizCheck struct {
	DotPath string

	lookPath func(string) (string, error)
	renderer render.ImageRenderer
}

// NewGraphvizCheck checks the binary at dotPath, or "dot" from PATH.
func NewGraphvizCheck(dotPath string) *GraphvizCheck {
	if dotPath == "" {
		dotPath = "dot"
	}
	return &GraphvizCheck{
		DotPath:  dotPath,
		lookPath: exec.LookPath,
		renderer: render.NewGraphvizRenderer(dotPath),
	}
}

func (c *GraphvizCheck) Name() string     { return "graphviz" }
func (c *GraphvizCheck) Category() string { return CategoryRender }

func (c *GraphvizCheck) Run(ctx context.Context) CheckResult {
	path, err := c.lookPath(c.DotPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Graphviz '%s' not found", c.DotPath),
			Suggestion: "Install graphviz: brew install graphviz (macOS) or apt install graphviz (Linux)",
		}
	}

	snap := pipeline.Snapshot{
		"source": {State: pipeline.Success{}, OutputWritten: pipeline.Counters(1)},
		"sink":   {State: pipeline.Success{}, InputRead: pipeline.Counters(1)},
	}
	dot, err := render.DOT(sampleTopology, snap, render.SchemeLight, render.DefaultPolicy())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: errors.Summary(err)}
	}

	g, err := c.renderer.Render(ctx, dot)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s can't render: %s", path, errors.Summary(err)),
			Suggestion: "Check render.dot_path points at Graphviz dot",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s renders SVG (sample %dx%dpt)", path, g.Width, g.Height),
	}
}
