package monitor

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/poll"
)

// StartFunc runs a scheduler with the given sink until it ends.
type StartFunc func(ctx context.Context, sink poll.EventSink) (poll.Outcome, error)

// eventBuffer bounds how far the scheduler can run ahead of the screen.
const eventBuffer = 16

// Run shows the dashboard while start runs in the background. It returns
// the scheduler's result once the user quits.
func Run(ctx context.Context, opts Options, start StartFunc, programOpts ...tea.ProgramOption) (poll.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan poll.Event, eventBuffer)
	sink := func(e poll.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}

	var (
		outcome poll.Outcome
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		outcome, runErr = start(ctx, sink)
	}()

	model := NewModel(opts, events, cancel)
	programOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, programOpts...)
	_, err := tea.NewProgram(model, programOpts...).Run()

	cancel()
	<-done

	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return outcome, errors.WrapWithCode(err, errors.ErrExec, "Dashboard failed",
			"Run with --plain to print updates as lines instead")
	}
	return outcome, runErr
}
