package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeafMist/oeis-bot/internal/config"
	"github.com/DeafMist/oeis-bot/internal/logger"
	"github.com/DeafMist/oeis-bot/internal/runner"
	"github.com/DeafMist/oeis-bot/internal/selector"
)

type postRunner interface {
	Run(ctx context.Context) (*runner.Result, error)
}

func main() {
	log := logger.New("poster")
	cfg, err := config.LoadPoster()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	r, closeFn := runner.FromConfig(&cfg.Common, log)

	code := run(ctx, log, r)
	closeFn()
	stop()
	os.Exit(code)
}

// run executes one run and maps its outcome to the process exit code.
func run(ctx context.Context, log *slog.Logger, r postRunner) int {
	res, err := r.Run(ctx)
	switch {
	case err == nil:
		log.Info("run finished",
			slog.String("run_id", res.RunID),
			slog.String("sequence", res.Sequence.ANumber()),
			slog.Bool("dry_run", res.DryRun),
		)
		return 0
	case errors.Is(err, selector.ErrExhausted):
		log.Error("no eligible sequence found", slog.Any("err", err))
	case errors.Is(err, runner.ErrPublish):
		log.Error("publishing failed", slog.Any("err", err))
	case errors.Is(err, context.Canceled):
		log.Warn("run interrupted", slog.Any("err", err))
	default:
		log.Error("run failed", slog.Any("err", err))
	}
	return 1
}
