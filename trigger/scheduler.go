package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduler fires one run per cron tick.
type scheduler struct {
	cron *cron.Cron
}

func newScheduler(ctx context.Context, log *slog.Logger, srv *server, spec, timezone string) (*scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { scheduledRun(ctx, log, srv) }); err != nil {
		return nil, fmt.Errorf("adding cron entry %q: %w", spec, err)
	}

	log.Info("run scheduled", slog.String("cron", spec), slog.String("timezone", loc.String()))
	return &scheduler{cron: c}, nil
}

func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running job ends.
func (s *scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func scheduledRun(ctx context.Context, log *slog.Logger, srv *server) {
	if ctx.Err() != nil {
		return
	}
	res, err := srv.runOnce(ctx, false)
	switch {
	case errors.Is(err, errBusy):
		log.Warn("scheduled run skipped, previous run still in progress")
	case err != nil:
		log.Error("scheduled run failed", slog.Any("err", err))
	default:
		log.Info("scheduled run finished",
			slog.String("run_id", res.RunID),
			slog.String("sequence", res.Sequence.ANumber()),
		)
	}
}
