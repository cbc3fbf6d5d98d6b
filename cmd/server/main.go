package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"demo-ingest/internal/config"
	"demo-ingest/internal/constants"
	fxmodules "demo-ingest/internal/fx"
	"demo-ingest/internal/scheduler"
	"demo-ingest/internal/server"
	"demo-ingest/internal/workqueue"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	apiServer *server.Server,
	queue *workqueue.Queue,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           c.Handler(apiServer.Router()),
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			queue.Start()
			sched.Start()
			go func() {
				logger.Info().Str("addr", srv.Addr).Str("app_env", cfg.AppEnv).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			if err := sched.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("scheduler did not stop in time")
			}
			if err := queue.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("workqueue did not drain in time")
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
