// Package rendertest provides an in-memory ImageRenderer for tests that must
// not depend on Graphviz being installed.
package rendertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rileyhilliard/teleop/internal/render"
)

// Renderer records every DOT it receives and returns a small fixed SVG.
type Renderer struct {
	mu     sync.Mutex
	dots   []string
	err    error
	failAt int

	Width  int
	Height int
}

// New returns a renderer producing a 200x100pt image.
func New() *Renderer {
	return &Renderer{Width: 200, Height: 100}
}

// FailWith makes the call numbered n (1-based) return err. n <= 0 fails every
// call.
func (r *Renderer) FailWith(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt = n
	r.err = err
}

// Render implements render.ImageRenderer.
func (r *Renderer) Render(ctx context.Context, dot string) (render.RenderedGraph, error) {
	if err := ctx.Err(); err != nil {
		return render.RenderedGraph{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dots = append(r.dots, dot)
	if r.err != nil && (r.failAt <= 0 || r.failAt == len(r.dots)) {
		return render.RenderedGraph{}, r.err
	}

	svg := fmt.Sprintf(`<svg width="%dpt" height="%dpt" viewBox="0 0 %d %d"></svg>`,
		r.Width, r.Height, r.Width, r.Height)
	return render.RenderedGraph{
		DOT:    dot,
		SVG:    []byte(svg),
		Width:  r.Width,
		Height: r.Height,
	}, nil
}

// DOTs returns every DOT document rendered so far.
func (r *Renderer) DOTs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dots...)
}

// Calls returns the number of Render calls.
func (r *Renderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dots)
}
