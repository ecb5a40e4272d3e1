// Package changefeed implements the Change Feed (component D): a raw
// watcher that turns KV watch events into typed ResourceEvents, and a
// per-kind Informer that maintains a local cache from those events.
package changefeed

import (
	"context"
	"reflect"
	"strings"

	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

// EventType classifies a ResourceEvent.
type EventType int

const (
	EventPut EventType = iota
	EventDelete
)

// ResourceEvent is the Watcher's typed output: a KV event parsed into its
// resource kind/namespace/name plus spec/status change diffing.
type ResourceEvent struct {
	Type          EventType
	ResourceType  registry.ResourceType
	Namespace     string
	Name          string
	Value         []byte // raw encoded resource, nil for EventDelete
	PrevValue     []byte
	SpecChanged   bool
	StatusChanged bool
}

// specStatusView is the minimal shape decoded from Value/PrevValue purely
// to diff the spec/status sub-documents; it never needs to know the kind's
// concrete Go type.
type specStatusView struct {
	Spec   any `json:"spec"`
	Status any `json:"status"`
}

// Watcher is the raw, long-lived subscription against the registry root
// prefix. It runs on its own goroutine, independent of request handlers;
// canceling ctx shuts it down deterministically.
type Watcher struct {
	store kv.Store
	log   *logger.Logger
	root  string
}

// NewWatcher constructs a Watcher over root (e.g. "/resources").
func NewWatcher(store kv.Store, log *logger.Logger, root string) *Watcher {
	return &Watcher{store: store, log: log, root: root}
}

// Run starts the watch and returns a channel of ResourceEvents. The channel
// closes when ctx is canceled or the underlying watch ends.
func (w *Watcher) Run(ctx context.Context) (<-chan ResourceEvent, error) {
	raw, err := w.store.WatchPrefix(ctx, w.root)
	if err != nil {
		return nil, err
	}

	out := make(chan ResourceEvent, 256)
	go func() {
		defer close(out)
		for ev := range raw {
			parsed, ok := w.parse(ev)
			if !ok {
				continue
			}
			select {
			case out <- parsed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// parse converts one kv.Event into a ResourceEvent, or reports ok=false
// for keys it cannot interpret (logged and dropped, per spec §4.D).
func (w *Watcher) parse(ev kv.Event) (ResourceEvent, bool) {
	kindPrefix, namespace, name, ok := splitKey(w.root, ev.Key)
	if !ok {
		w.log.Warn("change feed: unparseable key", "key", ev.Key)
		return ResourceEvent{}, false
	}

	resourceType, ok := registry.ResourceTypeForPrefix(kindPrefix)
	if !ok {
		w.log.Warn("change feed: unknown resource kind prefix", "prefix", kindPrefix, "key", ev.Key)
		return ResourceEvent{}, false
	}

	out := ResourceEvent{
		ResourceType: resourceType,
		Namespace:    namespace,
		Name:         name,
		PrevValue:    ev.PrevValue,
	}

	switch ev.Type {
	case kv.EventPut:
		out.Type = EventPut
		out.Value = ev.Value
		out.SpecChanged, out.StatusChanged = diff(ev.Value, ev.PrevValue)
	case kv.EventDelete:
		out.Type = EventDelete
		out.SpecChanged, out.StatusChanged = diff(nil, ev.PrevValue)
	}
	return out, true
}

func diff(current, prev []byte) (specChanged, statusChanged bool) {
	var curView, prevView specStatusView
	haveCur := current != nil && resources.Decode(current, &curView) == nil
	havePrev := prev != nil && resources.Decode(prev, &prevView) == nil

	if !haveCur && !havePrev {
		return false, false
	}
	if haveCur != havePrev {
		return true, true
	}
	return !reflect.DeepEqual(curView.Spec, prevView.Spec), !reflect.DeepEqual(curView.Status, prevView.Status)
}

func splitKey(root, key string) (kindPrefix, namespace, name string, ok bool) {
	trimmed := strings.TrimPrefix(key, strings.TrimSuffix(root, "/")+"/")
	if trimmed == key {
		return "", "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
