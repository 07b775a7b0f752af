// Command ledgerwatch consumes the ledger-update feed of a node and serves a
// liveness endpoint until it is interrupted or the feed closes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Phillezi/ledgerwatch/pkg/api"
	"github.com/Phillezi/ledgerwatch/pkg/config"
	"github.com/Phillezi/ledgerwatch/pkg/feed"
	"github.com/Phillezi/ledgerwatch/pkg/logging"
	"github.com/Phillezi/ledgerwatch/pkg/metrics"
	"github.com/Phillezi/ledgerwatch/pkg/milestone"
	"github.com/Phillezi/ledgerwatch/pkg/shutdown"
	"github.com/Phillezi/ledgerwatch/pkg/supervisor"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "ledgerwatch",
		Short:         "ledgerwatch consumes a node's ledger updates milestone by milestone",
		SilenceErrors: true,
		Example: `
  # Stream from a local node
  ledgerwatch --feed http://localhost:9013/ledger-updates

  # Replay a recorded feed from stdin with debug logs
  ledgerwatch --feed - -v 1 < updates.ndjson
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stderr, cfg.LogVerbosity).WithName("ledgerwatch").WithValues("run", uuid.NewString())
			return run(cmd.Context(), cfg, logger)
		},
	}
	if err := config.AddFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg config.Config, logger logr.Logger) error {
	var (
		m       *metrics.Metrics
		apiOpts = []api.Option{
			api.WithAddr(cfg.APIListen),
			api.WithLogger(logger.WithName("api")),
			api.WithShutdownTimeout(cfg.ShutdownTimeout),
		}
	)
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		var err error
		if m, err = metrics.New(reg); err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithGatherer(reg))
	}

	server := api.New(apiOpts...)
	consumer := milestone.NewConsumer(
		milestone.WithLogger(logger.WithName("stream")),
		milestone.WithMetrics(m),
	)

	s := supervisor.New(
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(m),
		supervisor.WithPrompt(cfg.Prompt),
		supervisor.WithForceExit(func() { os.Exit(1) }),
		supervisor.WithAPI(func(l *shutdown.Listener) error {
			return server.Run(l.Context())
		}),
		supervisor.WithStream(func(l *shutdown.Listener) (milestone.Outcome, error) {
			logger.Info("connecting to feed", "feed", cfg.Feed)
			src, err := feed.Open(l.Context(), cfg.Feed)
			if err != nil {
				if l.Context().Err() != nil {
					return milestone.Truncated, nil
				}
				return milestone.Exhausted, err
			}
			defer src.Close()
			logger.Info("connected to feed")
			return consumer.Run(l.Context(), src)
		}),
	)

	_, err := s.Run(ctx)
	return err
}
