package changefeed

import (
	"context"
	"sync"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/registry"
)

// Listener is invoked synchronously, on the watcher's goroutine, for every
// ResourceEvent of the kind an Informer is subscribed to. Returning
// internal/errors.ListenerDisconnected() removes the listener; any other
// error is logged and the listener is retained.
type Listener func(ctx context.Context, ev ResourceEvent) error

// Lister returns the full current set of a kind's resources, keyed by
// name, used to seed an Informer's cache at startup. Registry.List
// implementations are adapted to this shape by the caller.
type Lister[T any] func(ctx context.Context) (map[string]T, error)

// Decoder turns a ResourceEvent's raw Value into T, for cache updates.
type Decoder[T any] func(raw []byte) (T, error)

// Informer maintains a local name->resource cache for one kind, kept
// current by subscribing to a Watcher's ResourceEvent stream. Cache
// mutation and listener dispatch happen synchronously on the watcher's
// goroutine (spec §5: "no suspension occurs while mutating in-memory
// informer caches or router decision state").
type Informer[T any] struct {
	resourceType registry.ResourceType
	list         Lister[T]
	decode       Decoder[T]
	log          *logger.Logger

	mu        sync.RWMutex
	cache     map[string]T
	listeners []Listener
}

// NewInformer constructs an Informer for one resource kind.
func NewInformer[T any](resourceType registry.ResourceType, list Lister[T], decode Decoder[T], log *logger.Logger) *Informer[T] {
	return &Informer[T]{
		resourceType: resourceType,
		list:         list,
		decode:       decode,
		log:          log,
		cache:        make(map[string]T),
	}
}

// Setup seeds the cache from List and starts consuming events from the
// given ResourceEvent stream (a Watcher.Run() channel). Events are read
// directly from the channel and events of other kinds are discarded; an
// event read here is not seen by any other reader of the same channel.
func (inf *Informer[T]) Setup(ctx context.Context, events <-chan ResourceEvent) error {
	seed, err := inf.list(ctx)
	if err != nil {
		return roerrors.Wrap(roerrors.KindSetup, "seed informer cache", err)
	}

	inf.mu.Lock()
	inf.cache = seed
	inf.mu.Unlock()

	go inf.consume(ctx, events)
	return nil
}

func (inf *Informer[T]) consume(ctx context.Context, events <-chan ResourceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.ResourceType != inf.resourceType {
				continue
			}
			inf.apply(ev)
			inf.dispatch(ctx, ev)
		}
	}
}

func (inf *Informer[T]) apply(ev ResourceEvent) {
	inf.mu.Lock()
	defer inf.mu.Unlock()
	switch ev.Type {
	case EventPut:
		decoded, err := inf.decode(ev.Value)
		if err != nil {
			inf.log.Warn("informer: failed to decode resource", "type", inf.resourceType, "name", ev.Name, "error", err)
			return
		}
		inf.cache[ev.Name] = decoded
	case EventDelete:
		delete(inf.cache, ev.Name)
	}
}

func (inf *Informer[T]) dispatch(ctx context.Context, ev ResourceEvent) {
	inf.mu.Lock()
	listeners := inf.listeners
	inf.mu.Unlock()

	var survivors []Listener
	for _, l := range listeners {
		if err := inf.invoke(ctx, l, ev); err != nil {
			if roerrors.Is(err, roerrors.KindListenerDisconnected) {
				continue // drop it
			}
			inf.log.Error("informer listener error", "type", inf.resourceType, "error", err)
		}
		survivors = append(survivors, l)
	}

	inf.mu.Lock()
	// Keep listeners added by AddEventListener while this dispatch ran.
	inf.listeners = append(survivors, inf.listeners[len(listeners):]...)
	inf.mu.Unlock()
}

func (inf *Informer[T]) invoke(ctx context.Context, l Listener, ev ResourceEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			inf.log.Error("informer listener panicked", "type", inf.resourceType, "panic", r)
		}
	}()
	return l(ctx, ev)
}

// AddEventListener registers l to receive future events.
func (inf *Informer[T]) AddEventListener(l Listener) {
	inf.mu.Lock()
	defer inf.mu.Unlock()
	inf.listeners = append(inf.listeners, l)
}

// ListResources returns a snapshot copy of the cache.
func (inf *Informer[T]) ListResources() map[string]T {
	inf.mu.RLock()
	defer inf.mu.RUnlock()
	out := make(map[string]T, len(inf.cache))
	for k, v := range inf.cache {
		out[k] = v
	}
	return out
}

// Get returns one cached resource by name.
func (inf *Informer[T]) Get(name string) (T, bool) {
	inf.mu.RLock()
	defer inf.mu.RUnlock()
	v, ok := inf.cache[name]
	return v, ok
}
