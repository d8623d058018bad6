package redisdb

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/pkg/config"
	"github.com/redis/go-redis/v9"
)

func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            net.JoinHostPort(cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     time.Second,
		ReadTimeout:     400 * time.Millisecond,
		WriteTimeout:    400 * time.Millisecond,
		PoolSize:        100,
		MinIdleConns:    10,
		PoolTimeout:     750 * time.Millisecond,
		ConnMaxIdleTime: 90 * time.Second,
		MaxRetries:      0,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			_ = cn.ClientSetName(ctx, "miniwallet").Err()
			return nil
		},
	}
}

// ConnectRedis opens a client and pings it once. Scripts mutate balances, so
// retries stay off: a timed-out script may still have run.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	opts := Options(cfg)
	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", opts.Addr, err)
	}

	log.Info("Connected to redis", logger.StringField("addr", opts.Addr))
	return rdb, nil
}
