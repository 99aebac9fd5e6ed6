package database

import (
	"context"
	"fmt"
	"strings"

	"sportstrivia/internal/config"
	contextutils "sportstrivia/internal/utils"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds a universal client for single, sentinel or cluster mode and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection,
			"failed to connect to redis (mode: %s, addrs: %s): %w", cfg.Mode, strings.Join(opts.Addrs, ","), err)
	}
	return client, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 {
		if cfg.Addr == "" {
			return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError,
				"Invalid redis configuration", "redis.addrs or redis.addr must be set")
		}
		addrs = []string{cfg.Addr}
	}

	opts := &redis.UniversalOptions{
		Addrs:           addrs,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}

	switch cfg.Mode {
	case "", "single":
		// NewUniversalClient returns a plain client for one address
		opts.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError,
				"Invalid redis configuration", "sentinel mode requires redis.master_name")
		}
		opts.MasterName = cfg.MasterName
	case "cluster":
		if len(addrs) < 2 {
			return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError,
				"Invalid redis configuration", fmt.Sprintf("cluster mode needs at least two addresses, got %d", len(addrs)))
		}
	default:
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError,
			"Invalid redis configuration", "unsupported redis mode: "+cfg.Mode)
	}
	return opts, nil
}
