package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

const routeLogKeyPrefix = "routelog:"

// RedisArchive pushes the route log of a terminal run onto a per-job redis
// list, with an expiry so abandoned trails age out.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisArchive(addr string, ttl time.Duration) *RedisArchive {
	return &RedisArchive{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (a *RedisArchive) Archive(ctx context.Context, jobID string, entries []domain.RouteLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal route log entry: %w", err)
		}
		values = append(values, data)
	}

	key := routeLogKeyPrefix + jobID
	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push route log: %w", err)
	}
	return nil
}

func (a *RedisArchive) Close() error {
	return a.client.Close()
}
