package app

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"madrasa/internal/auth"
	"madrasa/internal/cache"
	"madrasa/internal/config"
	"madrasa/internal/logger"
	"madrasa/internal/queue"
	"madrasa/internal/store"
)

// LoadConfig reads .env, the YAML file named by CONFIG_FILE (default
// config.yaml) and the environment, then configures the logger.
func LoadConfig() (config.App, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.App{}, err
	}
	logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return cfg, nil
}

// Backplane is the redis-backed side of the service. Every field degrades to
// an in-process or disabled variant when redis is unreachable.
type Backplane struct {
	Redis   *store.Redis
	Reports *cache.Reports
	Limiter auth.Limiter
	Queue   queue.Queue
}

// OpenBackplane connects to redis when cfg needs it.
func OpenBackplane(ctx context.Context, cfg config.App) *Backplane {
	b := &Backplane{}
	if cfg.RedisAddr != "" {
		r := store.NewRedis(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		ok := r.Healthy(pingCtx)
		cancel()
		if ok {
			b.Redis = r
		} else {
			logger.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable, report cache disabled")
			_ = r.Close()
		}
	}

	if b.Redis != nil {
		b.Reports = cache.NewReports(b.Redis.Client, cfg.ReportCacheTTL)
		b.Limiter = auth.NewRedisLimiter(b.Redis.Client, cfg.LoginAttemptsPerMin)
	} else {
		b.Limiter = auth.NewMemoryLimiter(cfg.LoginAttemptsPerMin)
	}

	if cfg.QueueBackend == "redis" && b.Redis != nil {
		b.Queue = queue.NewRedisQueue(b.Redis.Client, queue.DefaultKey)
	} else {
		b.Queue = queue.NewInMemory(64)
	}
	return b
}

// InProcess reports whether events stay inside this process.
func (b *Backplane) InProcess() bool {
	_, ok := b.Queue.(*queue.InMemory)
	return ok
}

// Events returns the queue saves are announced on, or nil when nothing would
// use the announcement: an in-process queue without a report cache has no
// reports to warm.
func (b *Backplane) Events() queue.Queue {
	if b.InProcess() && b.Reports == nil {
		return nil
	}
	return b.Queue
}

// Healthy reports redis health. A process without redis is healthy.
func (b *Backplane) Healthy(ctx context.Context) bool {
	if b.Redis == nil {
		return true
	}
	return b.Redis.Healthy(ctx)
}

// Close releases the redis pool.
func (b *Backplane) Close() error {
	return b.Redis.Close()
}
