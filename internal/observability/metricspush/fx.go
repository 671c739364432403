package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/licensehub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPushInterval = 5 * time.Minute

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Provide(NewInventory),
	fx.Invoke(startWorker),
)

func startWorker(lc fx.Lifecycle, cfg config.Config, pusher Pusher, inv *Inventory, db *gorm.DB, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("metrics.push")

	interval := time.Duration(cfg.MetricsPush.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultPushInterval
	}
	gatherer := prometheus.Gatherers{prometheus.DefaultGatherer, inv.Gatherer()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					pushOnce(ctx, pusher, inv, db, gatherer, log)
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func pushOnce(ctx context.Context, pusher Pusher, inv *Inventory, db *gorm.DB, gatherer prometheus.Gatherer, log *zap.Logger) {
	if err := inv.Refresh(ctx, db); err != nil {
		log.Warn("inventory refresh failed", zap.Error(err))
	}
	if err := pusher.Push(ctx, gatherer); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
}
