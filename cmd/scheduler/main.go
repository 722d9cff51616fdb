package main

import (
	"context"

	"github.com/invopay/invopay/internal/cache"
	"github.com/invopay/invopay/internal/clock"
	"github.com/invopay/invopay/internal/config"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
	"github.com/invopay/invopay/internal/repository"
	"github.com/invopay/invopay/internal/service"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

func init() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()
}

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			cache.NewInMemoryCache,
			clock.New,
		),
		postgres.Module(),
		repository.Module(),
		service.Module(),
		fx.Invoke(startScheduler),
	).Run()
}

func startScheduler(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	log *logger.Logger,
	recurringSvc service.RecurringService,
) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
		ctx := context.Background()
		generated, err := recurringSvc.GenerateDueInvoices(ctx)
		if err != nil {
			log.Errorw("recurring generation run failed", "error", err)
			return
		}
		log.Infow("recurring generation run finished", "generated", generated)
	})
	if err != nil {
		log.Fatalw("invalid scheduler cron expression", "cron", cfg.Scheduler.Cron, "error", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting recurring invoice scheduler", "cron", cfg.Scheduler.Cron)
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping recurring invoice scheduler")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
