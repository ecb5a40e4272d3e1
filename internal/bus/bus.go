// Package bus implements the Message Bus Adapter (component B): durable,
// at-least-once delivery queues used by the Agent Inbox and the Workflow
// Router.
package bus

import "context"

// Handler processes one message. Returning an error leaves the message
// unacknowledged so it is redelivered; panics are recovered by the adapter
// and treated as an error, never crashing the consumer loop.
type Handler func(ctx context.Context, body []byte) error

// Bus is the durable queue abstraction every component publishes to and
// consumes from. Implementations must guarantee at-least-once delivery:
// handlers are expected to be idempotent.
type Bus interface {
	// Publish appends body to queue, durably, returning once the broker has
	// accepted it.
	Publish(ctx context.Context, queue string, body []byte) error

	// RegisterCallback starts consuming queue on a background goroutine,
	// invoking handler for every message. The returned unsubscribe function
	// stops the consumer loop; it does not drain in-flight messages.
	RegisterCallback(ctx context.Context, queue string, handler Handler) (unsubscribe func(), err error)

	// Close releases the underlying connection and stops every registered
	// consumer.
	Close() error
}
