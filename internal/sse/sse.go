// Package sse implements the SSE Change Projection (component I): it
// projects the raw change feed to per-client filtered server-sent-event
// streams.
package sse

import (
	"context"

	"github.com/rosterhq/control-plane/internal/changefeed"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/registry"
)

// Filter selects which ResourceEvents a subscriber receives. At least one
// of SpecChanges/StatusChanges must be true, enforced by NewFilter.
type Filter struct {
	ResourceTypes map[registry.ResourceType]struct{}
	SpecChanges   bool
	StatusChanges bool
}

// NewFilter validates and builds a Filter.
func NewFilter(resourceTypes []registry.ResourceType, specChanges, statusChanges bool) (Filter, error) {
	if !specChanges && !statusChanges {
		return Filter{}, roerrors.InvalidResource("at least one of spec_changes/status_changes must be true")
	}
	set := make(map[registry.ResourceType]struct{}, len(resourceTypes))
	for _, rt := range resourceTypes {
		set[rt] = struct{}{}
	}
	return Filter{ResourceTypes: set, SpecChanges: specChanges, StatusChanges: statusChanges}, nil
}

func (f Filter) matches(ev changefeed.ResourceEvent) bool {
	if len(f.ResourceTypes) > 0 {
		if _, ok := f.ResourceTypes[ev.ResourceType]; !ok {
			return false
		}
	}
	if ev.Type == changefeed.EventDelete {
		return true
	}
	return (f.SpecChanges && ev.SpecChanged) || (f.StatusChanges && ev.StatusChanged)
}

// Projection subscribes raw ResourceEvents from a shared channel and fans
// them out to per-connection bounded channels, each filtered independently.
type Projection struct {
	events <-chan changefeed.ResourceEvent
}

// NewProjection wraps a Watcher.Run() channel (shared across subscribers,
// including Informers of every kind and this projection).
func NewProjection(events <-chan changefeed.ResourceEvent) *Projection {
	return &Projection{events: events}
}

// Subscription is one client's filtered, bounded event stream.
type Subscription struct {
	Events <-chan changefeed.ResourceEvent
	cancel context.CancelFunc
}

// Close cancels the subscription; the goroutine started by Subscribe then
// exits and closes Events.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe registers a new filtered subscription. The channel has a
// bounded buffer (size); a slow consumer drops events rather than
// blocking the shared dispatch loop.
func (p *Projection) Subscribe(ctx context.Context, filter Filter, size int) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan changefeed.ResourceEvent, size)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-p.events:
				if !ok {
					return
				}
				if !filter.matches(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				default:
					// Bounded channel full: drop rather than block the
					// shared dispatch loop other subscribers depend on.
				}
			}
		}
	}()

	return &Subscription{Events: out, cancel: cancel}
}
