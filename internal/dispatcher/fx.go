package dispatcher

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/paygrid/disburse/internal/config"
)

var Module = fx.Module("dispatcher",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(RunDispatcher),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		TickInterval:      cfg.Dispatcher.TickInterval,
		BatchSize:         cfg.Dispatcher.BatchSize,
		Workers:           cfg.Dispatcher.Workers,
		ExecutionTimeout:  cfg.Dispatcher.ExecutionTimeout,
		RecoveryThreshold: cfg.Dispatcher.RecoveryThreshold,
		LeaderLockTTL:     cfg.Dispatcher.LeaderLockTTL,
		EnabledJobs:       cfg.Dispatcher.EnabledJobs,
	}.withDefaults()
}

// ProvideLocker builds the leader lock when redis is configured. A nil
// locker means every instance dispatches on its own tick.
func ProvideLocker(cfg config.Config) *Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return NewLocker(client)
}

func RunDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go d.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
