package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/factorlens/internal/di"
	"github.com/aristath/factorlens/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe()
		},
	}
}

func (a *app) runServe() error {
	log := a.log
	log.Info().Str("version", version).Msg("Starting factorlens")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.Wire(ctx, a.cfg, nil, log)
	if err != nil {
		return err
	}
	// Databases must be closed so that WAL checkpoints are written.
	defer container.Close()

	sched, err := di.RegisterJobs(container, a.cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Log:       log,
		HistoryDB: container.HistoryDB,
		CacheDB:   container.CacheDB,
		Config:    a.cfg,
		Analysis:  container.AnalysisService,
		Metrics:   container.Metrics,
		Scheduler: sched,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	sched.Start()
	log.Info().Int("port", a.cfg.Port).Msg("Server started successfully")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		sched.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()

	log.Info().Msg("Server stopped")
	return nil
}
