package bus

import (
	"context"
	"sync"

	"github.com/rosterhq/control-plane/internal/logger"
)

// MemoryBus is an in-process Bus used by component tests so they can run
// without a live Redis instance while exercising the exact same interface
// RedisStreamBus satisfies in production.
type MemoryBus struct {
	mu      sync.Mutex
	queues  map[string]chan []byte
	cancels []context.CancelFunc
	log     *logger.Logger
}

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	return &MemoryBus{
		queues: make(map[string]chan []byte),
		log:    log,
	}
}

func (b *MemoryBus) channel(queue string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[queue]
	if !ok {
		ch = make(chan []byte, 1000)
		b.queues[queue] = ch
	}
	return ch
}

// Publish enqueues body on queue's buffered channel.
func (b *MemoryBus) Publish(ctx context.Context, queue string, body []byte) error {
	ch := b.channel(queue)
	select {
	case ch <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		b.log.Warn("memory bus queue full, dropping message", "queue", queue)
		return nil
	}
}

// RegisterCallback starts a goroutine draining queue and invoking handler.
func (b *MemoryBus) RegisterCallback(ctx context.Context, queue string, handler Handler) (func(), error) {
	ch := b.channel(queue)
	loopCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-loopCtx.Done():
				return
			case body := <-ch:
				func() {
					defer func() {
						if r := recover(); r != nil {
							b.log.Error("memory bus handler panicked", "queue", queue, "panic", r)
						}
					}()
					if err := handler(loopCtx, body); err != nil {
						b.log.Error("memory bus handler failed", "queue", queue, "error", err)
					}
				}()
			}
		}
	}()

	return cancel, nil
}

// Close cancels every registered consumer loop.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	return nil
}
