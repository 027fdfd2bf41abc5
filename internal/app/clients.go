package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/llm"
	"github.com/yungbote/peai-backend/internal/platform/lock"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/platform/tokens"
)

type Clients struct {
	Generator pei.Generator
	Limiter   *tokens.Limiter
	Locker    lock.Locker
	Redis     *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	var out Clients

	limiter, err := tokens.NewLimiter(cfg.MaterialMaxToken)
	if err != nil {
		// The limiter still works with its character estimate.
		log.Warn("Tokenizer unavailable, using character estimate", "error", err)
	}
	out.Limiter = limiter

	backend, err := llm.NewBackend(ctx, log, cfg.LLM)
	if err != nil {
		return out, fmt.Errorf("init generator: %w", err)
	}
	log.Info("Generator ready", "provider", backend.Provider(), "model", backend.Model())
	out.Generator = llm.NewInstrumented(backend, log, metrics, limiter, cfg.LLM.Timeout)

	if cfg.RedisAddr != "" {
		rdb, err := lock.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return out, fmt.Errorf("init redis lock: %w", err)
		}
		out.Redis = rdb
		out.Locker = lock.NewRedis(rdb, log, 0)
		log.Info("Using Redis plan lock", "addr", cfg.RedisAddr)
	} else {
		out.Locker = lock.NewLocal()
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
