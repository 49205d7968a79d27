package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveAddrFlag   string
	serveHostFlag   string
	serveSchemeFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a browser view of pipeline processes",
	Long: `Start an HTTP viewer. The index lists observable processes; opening a
process starts watching it and stops watching the previous one.

Routes:
  /                        process list
  /teleop/{pid}            live graph page (?scale=10..200, ?restart=1)
  /teleop/{pid}/graph.svg  latest rendered graph
  /teleop/{pid}/status     latest status as JSON
  /metrics                 Prometheus metrics

Examples:
  teleop serve
  teleop serve --addr 127.0.0.1:9000 --host etl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.NewEnvLogger("[serve]")

		tgt, err := resolveTarget(cfg, serveHostFlag, log)
		if err != nil {
			return err
		}
		// Browsers pick their own background; auto means light here.
		sess, err := newSession(cfg, tgt, serveSchemeFlag, nil, log)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sess.metrics = poll.NewMetrics(reg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := web.NewHub(ctx, sess.start, sess.metrics, log)
		srv := web.NewServer(web.Options{
			Hub:      hub,
			Discover: tgt.discover,
			Gatherer: reg,
			Policy:   sess.policy,
			Interval: sess.interval,
			Scale:    cfg.Render.Scale,
			Host:     serveHostFlag,
			Logger:   log,
		})

		addr := cfg.Serve.Addr
		if serveAddrFlag != "" {
			addr = serveAddrFlag
		}
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default serve.addr)")
	serveCmd.Flags().StringVar(&serveHostFlag, "host", "", "configured remote host to look on")
	serveCmd.Flags().StringVar(&serveSchemeFlag, "scheme", "", "color scheme: light or dark (default render.scheme)")
	rootCmd.AddCommand(serveCmd)
}
