package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/23skdu/gridscreen/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration through a command.
type app struct {
	cfg    Config
	logger zerolog.Logger
	out    io.Writer
}

// newRootCommand builds the command tree. Environment configuration is read
// before flag parsing so that flags override it.
func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	cfg, loadErr := LoadConfig(envFileFromEnv())
	a.cfg = cfg

	cmd := &cobra.Command{
		Use:   "gridscreen",
		Short: "Pairwise protein/ligand interaction screening",
		Long: "gridscreen evaluates a Lennard-Jones interaction score for every\n" +
			"protein x ligand pair and ranks the results. The grid can be computed\n" +
			"sequentially, on a goroutine pool, across a process group, or split\n" +
			"between the CPU and an accelerator device.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			logger, err := logging.NewLogger(logging.Config{
				Format:    a.cfg.LogFormat,
				Level:     a.cfg.LogLevel,
				Output:    os.Stderr,
				Component: "gridscreen",
			})
			if err != nil {
				return err
			}
			// run_id tags every log line of this invocation
			a.logger = logger.With().Str("run_id", uuid.NewString()).Logger()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format (json, console)")
	pf.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address")

	cmd.AddCommand(newRunCommand(a), newWorkerCommand(a), newGendataCommand(a))
	return cmd
}

func envFileFromEnv() string {
	if f := os.Getenv(envPrefix + "_ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

// addComputeFlags registers the flags shared by run and worker.
func addComputeFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	f.StringVarP(&cfg.Backend, "backend", "b", cfg.Backend, "execution backend (sequential, shared, distributed, hybrid, accelerator)")
	f.IntVar(&cfg.Threads, "threads", cfg.Threads, "shared-memory workers; 0 uses every CPU")
	f.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "cells claimed per scheduling step; 0 picks one")
	f.IntVar(&cfg.WorldSize, "world-size", cfg.WorldSize, "number of ranks for distributed and hybrid backends")
	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "rank transport (local, flight)")
	f.StringVar(&cfg.Coordinator, "coordinator", cfg.Coordinator, "rank 0 Flight address")
	f.DurationVar(&cfg.GatherTimeout, "gather-timeout", cfg.GatherTimeout, "bound on the whole run including collectives; 0 waits forever")
	f.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "largest Flight message; 0 uses the default")
}

// startMetricsServer serves /metrics until the returned stop function runs.
func (a *app) startMetricsServer() (stop func()) {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("address", a.cfg.MetricsAddr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runContext applies the gather timeout to ctx.
func (a *app) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.GatherTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.GatherTimeout)
	}
	return context.WithCancel(ctx)
}
