package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rosterhq/control-plane/internal/logger"
)

// RedisStreamBus implements Bus on top of Redis Streams. Publish is XADD;
// a consumer group named "<queue>:cg" is created lazily per queue so that
// every process sharing a queue name shares delivery (horizontal scaling of
// a single logical consumer, per the router's sharding story) while still
// only delivering each message to one consumer.
type RedisStreamBus struct {
	client       *redis.Client
	log          *logger.Logger
	consumer     string
	blockTimeout time.Duration

	mu        sync.Mutex
	cancelers []context.CancelFunc
}

// NewRedisStreamBus wraps an existing redis.Client.
func NewRedisStreamBus(client *redis.Client, consumerName string, blockTimeout time.Duration, log *logger.Logger) *RedisStreamBus {
	return &RedisStreamBus{
		client:       client,
		log:          log,
		consumer:     consumerName,
		blockTimeout: blockTimeout,
	}
}

func groupName(queue string) string {
	return queue + ":cg"
}

// Publish appends body to the stream named queue.
func (b *RedisStreamBus) Publish(ctx context.Context, queue string, body []byte) error {
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: queue,
		Values: map[string]interface{}{"body": body, "msg_id": uuid.NewString()},
	}).Result()
	if err != nil {
		b.log.Error("redis XADD failed", "queue", queue, "error", err)
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	b.log.Debug("redis XADD", "queue", queue, "id", id)
	return nil
}

// RegisterCallback starts a blocking XREADGROUP loop on its own goroutine.
func (b *RedisStreamBus) RegisterCallback(ctx context.Context, queue string, handler Handler) (func(), error) {
	group := groupName(queue)
	if err := b.client.XGroupCreateMkStream(ctx, queue, group, "0").Err(); err != nil &&
		!errors.Is(err, redis.Nil) && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return nil, fmt.Errorf("create consumer group %s: %w", group, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelers = append(b.cancelers, cancel)
	b.mu.Unlock()

	go b.consumeLoop(loopCtx, queue, group, handler)

	return cancel, nil
}

func (b *RedisStreamBus) consumeLoop(ctx context.Context, queue, group string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{queue, ">"},
			Count:    10,
			Block:    b.blockTimeout,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("redis XREADGROUP failed", "queue", queue, "group", group, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleOne(ctx, queue, group, msg, handler)
			}
		}
	}
}

func (b *RedisStreamBus) handleOne(ctx context.Context, queue, group string, msg redis.XMessage, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panicked", "queue", queue, "message_id", msg.ID, "panic", r)
		}
	}()

	raw, _ := msg.Values["body"]
	body, ok := raw.(string)
	if !ok {
		b.log.Error("bus message missing body field", "queue", queue, "message_id", msg.ID)
		b.ack(ctx, queue, group, msg.ID)
		return
	}

	if err := handler(ctx, []byte(body)); err != nil {
		b.log.Error("bus handler failed, message left unacked for redelivery", "queue", queue, "message_id", msg.ID, "error", err)
		return
	}

	b.ack(ctx, queue, group, msg.ID)
}

func (b *RedisStreamBus) ack(ctx context.Context, queue, group, id string) {
	if err := b.client.XAck(ctx, queue, group, id).Err(); err != nil {
		b.log.Error("redis XACK failed", "queue", queue, "message_id", id, "error", err)
	}
}

// Close cancels every registered consumer loop and closes the connection.
func (b *RedisStreamBus) Close() error {
	b.mu.Lock()
	for _, cancel := range b.cancelers {
		cancel()
	}
	b.mu.Unlock()
	return b.client.Close()
}
