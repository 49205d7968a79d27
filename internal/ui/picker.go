package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/transport"
)

// ProcessOptions builds the select options for procs. The option value is
// the index into procs.
func ProcessOptions(procs []transport.Process) []huh.Option[int] {
	options := make([]huh.Option[int], len(procs))
	for i, p := range procs {
		label := p.Title()
		if desc := p.Description(); desc != "" {
			label = fmt.Sprintf("%s  %s", label, desc)
		}
		options[i] = huh.NewOption(label, i)
	}
	return options
}

// PickProcess asks the user to choose one of procs. Returns nil if the user
// cancels.
func PickProcess(procs []transport.Process) (*transport.Process, error) {
	return PickProcessWithIO(procs, os.Stdout, os.Stdin)
}

// PickProcessWithIO displays the picker using custom I/O.
func PickProcessWithIO(procs []transport.Process, output io.Writer, input io.Reader) (*transport.Process, error) {
	if len(procs) == 0 {
		return nil, errors.New(errors.ErrConnect, "No observable processes found",
			"Start a pipeline with observation enabled, or pass --host to look on a remote machine.")
	}

	if len(procs) == 1 {
		return &procs[0], nil
	}

	var choice int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Select a process to watch").
				Options(ProcessOptions(procs)...).
				Value(&choice),
		),
	).WithOutput(output).WithInput(input)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Process picker failed",
			"Pass the pid directly: teleop watch <pid>")
	}

	return &procs[choice], nil
}
