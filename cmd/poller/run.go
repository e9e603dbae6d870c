package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/connector-poller/pkg/poll"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all enabled connectors on the poll interval",
	Long: `Runs a deploy pass (capped at poll.deploy_max_results items per connector)
and then a scheduled pass every poll.interval until interrupted. Metrics
and health endpoints are served on server.addr.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var deployCmd = &cobra.Command{
	Use:   "deploy [connector...]",
	Short: "Run a single deploy pass",
	Long: `Runs one deploy pass: the first poll of a connector instance, capped at
poll.deploy_max_results items. Without arguments all enabled connectors run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, poll.Deploy, args)
	},
}

var pollMode string

var pollCmd = &cobra.Command{
	Use:   "poll [connector...]",
	Short: "Run a single poll pass",
	Long: `Runs one poll pass in the given mode and prints what was emitted.
Without arguments all enabled connectors run; naming a connector runs it
even when it is not enabled in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := poll.ParseMode(pollMode)
		if err != nil {
			return err
		}
		return runPass(cmd, mode, args)
	},
}

func init() {
	pollCmd.Flags().StringVar(&pollMode, "mode", poll.Scheduled.String(), "pass mode: scheduled or deploy")
	rootCmd.AddCommand(runCmd, deployCmd, pollCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.Jobs()
	if err != nil {
		return err
	}
	runner, err := poll.NewRunner(cfg.Poll.Interval, jobs...)
	if err != nil {
		return err
	}
	runner.WithLogger(logger.With().Str("component", "runner").Logger())

	if cfg.Server.Addr != "" {
		srv := newServer(cfg.Server.Addr, a.redis)
		go func() {
			logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return runner.Run(ctx)
}

// runPass runs every selected job once and prints one line per job.
func runPass(cmd *cobra.Command, mode poll.Mode, only []string) error {
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.Jobs(only...)
	if err != nil {
		return err
	}
	runner, err := poll.NewRunner(cfg.Poll.Interval, jobs...)
	if err != nil {
		return err
	}
	runner.WithLogger(logger.With().Str("component", "runner").Logger())

	failed := 0
	for _, o := range runner.RunOnce(ctx, mode) {
		if o.Err != nil {
			failed++
			cmd.Printf("%s: error: %v\n", o.Job, o.Err)
			continue
		}
		cmd.Printf("%s: fetched=%d emitted=%d watermark=%s advanced=%t\n",
			o.Job, o.Result.Fetched, o.Result.Emitted,
			o.Result.Watermark.UTC().Format(time.RFC3339Nano), o.Result.Advanced)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}
