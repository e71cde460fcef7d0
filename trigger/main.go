package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/oeis-bot/internal/config"
	"github.com/DeafMist/oeis-bot/internal/logger"
	"github.com/DeafMist/oeis-bot/internal/runner"
)

func main() {
	log := logger.New("trigger")
	cfg, err := config.LoadTrigger()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	r, closeFn := runner.FromConfig(&cfg.Common, log)
	defer closeFn()

	srv := newServer(log, r)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var sched *scheduler
	if cfg.Schedule != "" {
		sched, err = newScheduler(ctx, log, srv, cfg.Schedule, cfg.Timezone)
		if err != nil {
			log.Error("init schedule", slog.Any("err", err))
			stop()
			closeFn()
			os.Exit(1)
		}
		sched.Start()
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      runTimeout + 15*time.Second,
	}

	go func() {
		log.Info("trigger server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	if sched != nil {
		<-sched.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
