package fx

import (
	"database/sql"

	"demo-ingest/internal/api"
	"demo-ingest/internal/config"
	"demo-ingest/internal/constants"
	"demo-ingest/internal/database"
	"demo-ingest/internal/db"
	"demo-ingest/internal/logger"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/scheduler"
	"demo-ingest/internal/server"
	"demo-ingest/internal/service"
	"demo-ingest/internal/validation"
	"demo-ingest/internal/workqueue"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideWorkqueue(cfg *config.Config, logger zerolog.Logger) *workqueue.Queue {
	return workqueue.New(logger, cfg.WorkqueueWorkers)
}

func ProvideTaskSubmitter(q *workqueue.Queue) service.TaskSubmitter {
	return q
}

func ProvideParser(c *api.ParserClient) service.Parser {
	return c
}

func ProvideScheduler(cfg *config.Config, q *workqueue.Queue, leaderboards *service.LeaderboardCalculator, sweeper *service.Sweeper, logger zerolog.Logger) *scheduler.Scheduler {
	return scheduler.New(q, logger,
		scheduler.Job{Name: "leaderboards", Interval: cfg.LeaderboardInterval, Task: leaderboards.Task},
		scheduler.Job{Name: "sweep", Interval: constants.SweepInterval, Task: sweeper.Task},
	)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewJobRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewEventRepository),
	fx.Provide(repository.NewSummaryRepository),
	fx.Provide(repository.NewGroupRepository),
	fx.Provide(repository.NewLeaderboardRepository),
	// background work
	fx.Provide(ProvideWorkqueue),
	fx.Provide(ProvideTaskSubmitter),
	fx.Provide(ProvideScheduler),
	// api client
	fx.Provide(api.NewParserClient),
	fx.Provide(ProvideParser),
	// svc
	fx.Provide(validation.New),
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewJobTracker),
	fx.Provide(service.NewRegistry),
	fx.Provide(service.NewIngestor),
	fx.Provide(service.NewOrchestrator),
	fx.Provide(service.NewLeaderboardCalculator),
	fx.Provide(service.NewGroupService),
	fx.Provide(service.NewSweeper),
	// server
	fx.Provide(server.NewServer),
)
