package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/tasks"
	"go.uber.org/zap"
)

// RunWorkers runs the asynq server and the periodic purge scheduler until
// ctx is cancelled. It returns immediately when workers are disabled.
func RunWorkers(ctx context.Context, cfg *config.Config, purger tasks.ExpiredKeyPurger, logger *zap.Logger) error {
	if !cfg.Worker.Enabled {
		logger.Info("Background workers disabled")
		return nil
	}

	redisConnOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeAPIKeyPurgeExpired, tasks.NewPurgeExpiredHandler(purger, logger))

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	purgeTask, err := tasks.NewPurgeExpiredTask()
	if err != nil {
		return fmt.Errorf("scheduler task creation error: %w", err)
	}

	entryID, err := scheduler.Register(cfg.Worker.PurgeSchedule, purgeTask)
	if err != nil {
		logger.Error("Could not register periodic task for api key purge", zap.Error(err))
		return fmt.Errorf("scheduler registration error: %w", err)
	}
	logger.Info("Registered periodic expired api key purge", zap.String("entry_id", entryID), zap.String("schedule", cfg.Worker.PurgeSchedule))

	logger.Info("Starting Asynq Server...")
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	logger.Info("Starting Asynq Scheduler...")
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("asynq scheduler error: %w", err)
	}

	<-ctx.Done()

	logger.Info("Shutting down Asynq Scheduler...")
	scheduler.Shutdown()
	logger.Info("Asynq Scheduler stopped.")

	logger.Info("Shutting down Asynq Server...")
	srv.Shutdown()
	logger.Info("Asynq Server stopped.")

	return nil
}
