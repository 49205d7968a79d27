package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/monitor"
	"github.com/rileyhilliard/teleop/internal/output"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/ui"
	"github.com/spf13/cobra"
)

// ExitNodeFailed is returned when the pipeline finished with failed nodes.
const ExitNodeFailed = 2

var (
	watchHostFlag     string
	watchIntervalFlag string
	watchOutFlag      string
	watchFormatFlag   string
	watchSchemeFlag   string
	watchScaleFlag    int
	watchOnceFlag     bool
	watchPlainFlag    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [pid]",
	Short: "Watch a pipeline process",
	Long: `Attach to a pipeline process and follow its execution graph until the
pipeline finishes, the connection is lost or you quit.

On a terminal this opens a dashboard with node states and edge backlogs.
Otherwise, or with --plain, one line is printed per poll cycle. Without a
pid you pick from the discovered processes.

Keyboard shortcuts (dashboard):
  q / Ctrl+C  Quit
  + / -       Scale the output image
  ?           Show help

Exit status: 0 when the pipeline finished (or you quit), 2 when it finished
with failed nodes, 1 on connection, protocol or render failure.

Examples:
  teleop watch 4242
  teleop watch --host etl 4242
  teleop watch 4242 --out graph.svg --interval 1s
  teleop watch 4242 --plain --once --out graph.dot`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd, args)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchHostFlag, "host", "", "configured remote host to look on")
	watchCmd.Flags().StringVar(&watchIntervalFlag, "interval", "", "delay between polls (default poll.interval)")
	watchCmd.Flags().StringVarP(&watchOutFlag, "out", "o", "", "write every rendered graph to this file")
	watchCmd.Flags().StringVar(&watchFormatFlag, "format", "", "output file format: svg or dot (default from --out extension)")
	watchCmd.Flags().StringVar(&watchSchemeFlag, "scheme", "", "color scheme: auto, light or dark (default render.scheme)")
	watchCmd.Flags().IntVar(&watchScaleFlag, "scale", 0, "image scale in percent, 10..200 (default render.scale)")
	watchCmd.Flags().BoolVar(&watchOnceFlag, "once", false, "stop after the first snapshot")
	watchCmd.Flags().BoolVar(&watchPlainFlag, "plain", false, "print lines instead of the dashboard")
	rootCmd.AddCommand(watchCmd)
}

// watchOptions is the resolved form of the watch flags.
type watchOptions struct {
	pid   int
	host  string
	scale int
	file  *output.GraphFile
	once  bool
	tui   bool
}

func watchCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	tui := !watchPlainFlag && stdoutIsTerminal()
	log := logger.NewEnvLogger("[watch]")
	if tui {
		log = logger.Noop()
	}

	tgt, err := resolveTarget(cfg, watchHostFlag, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pid, err := choosePID(ctx, tgt, args)
	if err != nil || pid == 0 {
		return err
	}

	sess, err := newSession(cfg, tgt, watchSchemeFlag, ui.HasDarkBackground, log)
	if err != nil {
		return err
	}
	if watchIntervalFlag != "" {
		if sess.interval, err = parseInterval(watchIntervalFlag); err != nil {
			return err
		}
	}

	scale := cfg.Render.Scale
	if cmd.Flags().Changed("scale") {
		scale = watchScaleFlag
	}
	if err := config.ValidateScale(scale); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Use a multiple of 10 between 10 and 200")
	}

	opts := watchOptions{
		pid:   pid,
		host:  watchHostFlag,
		scale: scale,
		once:  watchOnceFlag,
		tui:   tui,
	}
	if watchOutFlag != "" {
		format, err := output.ParseFormat(watchFormatFlag, watchOutFlag)
		if err != nil {
			return err
		}
		if opts.file, err = output.NewGraphFile(watchOutFlag, format, scale); err != nil {
			return err
		}
	}

	return runWatch(ctx, cmd.OutOrStdout(), sess, opts)
}

// choosePID parses the pid argument, or asks the user to pick one. A zero
// pid with a nil error means the user cancelled the picker.
func choosePID(ctx context.Context, tgt *target, args []string) (int, error) {
	if len(args) == 1 {
		return parsePID(args[0])
	}

	if !stdinIsTerminal() {
		return 0, errors.New(errors.ErrConfig,
			"No pid given",
			"Pass the pid to watch: teleop watch <pid>. Run 'teleop list' to see candidates.")
	}

	procs, err := tgt.discover(ctx)
	if err != nil {
		return 0, err
	}
	p, err := ui.PickProcess(procs)
	if err != nil || p == nil {
		return 0, err
	}
	return p.PID, nil
}

func parsePID(raw string) (int, error) {
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid pid: %s", raw),
			"Pass the numeric pid of a running pipeline process")
	}
	return pid, nil
}

// runWatch drives one session through the dashboard or the line printer and
// maps the result to the command's exit status.
func runWatch(ctx context.Context, w io.Writer, sess *session, opts watchOptions) error {
	rec := &lastSnapshot{}
	start := func(ctx context.Context, sink poll.EventSink) (poll.Outcome, error) {
		sink = rec.wrap(sink)
		if opts.once {
			return runOnce(ctx, opts.pid, sink, sess.start)
		}
		return sess.start(ctx, opts.pid, sink)
	}

	var (
		outcome poll.Outcome
		err     error
	)
	if opts.tui {
		outcome, err = monitor.Run(ctx, monitor.Options{
			PID:      opts.pid,
			Host:     opts.host,
			Policy:   sess.policy,
			Interval: sess.interval,
			Scale:    opts.scale,
			File:     opts.file,
		}, start)
	} else {
		printer := output.NewPrinter(w, sess.policy, opts.file)
		outcome, err = start(ctx, printer.Handle)
	}

	return watchResult(outcome, err, rec.get())
}

// runOnce stops the session after its first completed cycle.
func runOnce(ctx context.Context, pid int, sink poll.EventSink, start func(context.Context, int, poll.EventSink) (poll.Outcome, error)) (poll.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return start(ctx, pid, func(e poll.Event) {
		sink(e)
		if e.IsCycle() {
			cancel()
		}
	})
}

// watchResult maps a session result to the command error.
func watchResult(outcome poll.Outcome, err error, last pipeline.Snapshot) error {
	switch outcome {
	case poll.OutcomeFailed:
		return err
	case poll.OutcomeFinished:
		if pipeline.StateCounts(last)["error"] > 0 {
			return errors.NewExitError(ExitNodeFailed)
		}
	}
	return nil
}

// lastSnapshot remembers the most recent cycle's snapshot.
type lastSnapshot struct {
	mu   sync.Mutex
	snap pipeline.Snapshot
}

func (l *lastSnapshot) wrap(sink poll.EventSink) poll.EventSink {
	return func(e poll.Event) {
		if e.IsCycle() {
			l.mu.Lock()
			l.snap = e.Snapshot
			l.mu.Unlock()
		}
		sink(e)
	}
}

func (l *lastSnapshot) get() pipeline.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}
