package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is where status snapshots and fault events end up.
type Store interface {
	PublishStatus(ctx context.Context, fields map[string]any) error
	ReportFault(ctx context.Context, values map[string]any) error
	Close() error
}

const (
	statusHash   = "lkas"
	statusChan   = "lkas"
	faultStream  = "events:faults"
	faultMaxLen  = 1000
	redisTimeout = 50 * time.Millisecond
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           0,
		DialTimeout:  time.Second,
		ReadTimeout:  redisTimeout,
		WriteTimeout: redisTimeout,
	})}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", r.client.Options().Addr, err)
	}
	return nil
}

// PublishStatus sets the status hash and notifies subscribers in one
// round trip.
func (r *RedisStore) PublishStatus(ctx context.Context, fields map[string]any) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, statusHash, fields)
	pipe.Publish(ctx, statusChan, "status")
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) ReportFault(ctx context.Context, values map[string]any) error {
	pipe := r.client.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: faultStream,
		MaxLen: faultMaxLen,
		Approx: true,
		Values: values,
	})
	pipe.Publish(ctx, statusChan, "fault")
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
