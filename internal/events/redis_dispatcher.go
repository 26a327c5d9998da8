package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPollTimeout = 2 * time.Second

// redisDispatcher uses a Redis list as a queue shared by every API replica.
type redisDispatcher struct {
	handlerSet
	client  *redis.Client
	key     string
	workers int
}

// NewRedisDispatcher builds a dispatcher over RPUSH/BLPOP on key.
func NewRedisDispatcher(client *redis.Client, key string, workers int, logger *zap.Logger, opts ...Option) Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &redisDispatcher{
		handlerSet: newHandlerSet(logger, opts),
		client:     client,
		key:        key,
		workers:    workers,
	}
}

func (d *redisDispatcher) Publish(ctx context.Context, event TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return d.client.RPush(ctx, d.key, payload).Err()
}

func (d *redisDispatcher) Subscribe(handler EventHandler) {
	d.add(handler)
}

// Run stops popping once ctx is done; unpopped events stay in Redis for the
// next consumer. Events already popped still run on the drain budget.
func (d *redisDispatcher) Run(ctx context.Context) error {
	handlerCtx, stop := d.handlerContext(ctx)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.consume(ctx, handlerCtx)
		}()
	}
	wg.Wait()
	return nil
}

func (d *redisDispatcher) consume(ctx, handlerCtx context.Context) {
	backoff := 100 * time.Millisecond
	for ctx.Err() == nil {
		result, err := d.client.BLPop(ctx, redisPollTimeout, d.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("event queue read failed", zap.String("key", d.key), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 100 * time.Millisecond

		// BLPOP replies with [key, value].
		if len(result) != 2 {
			continue
		}
		var event TransitionEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			d.logger.Error("dropping undecodable event", zap.String("key", d.key), zap.Error(err))
			continue
		}
		d.invoke(handlerCtx, event)
	}
}
