package kv

import (
	"context"
	"strings"
	"sync"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// MemoryStore is an in-process Store used by component tests; it
// implements prefix watch semantics faithfully enough (including
// PrevValue) to exercise changefeed.Watcher without a live etcd cluster.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers []*memoryWatch
}

type memoryWatch struct {
	prefix string
	ch     chan Event
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	prev, existed := s.data[key]
	cp := append([]byte(nil), value...)
	s.data[key] = cp
	watchers := append([]*memoryWatch(nil), s.watchers...)
	s.mu.Unlock()

	ev := Event{Type: EventPut, Key: key, Value: cp}
	if existed {
		ev.PrevValue = prev
	}
	s.dispatch(watchers, key, ev)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, roerrors.NotFound("key " + key + " not found")
	}
	return v, nil
}

func (s *MemoryStore) GetPrefix(ctx context.Context, prefix string) ([]KV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []KV
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, KV{Key: k, Value: v})
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	prev, existed := s.data[key]
	delete(s.data, key)
	watchers := append([]*memoryWatch(nil), s.watchers...)
	s.mu.Unlock()

	if !existed {
		return nil
	}
	s.dispatch(watchers, key, Event{Type: EventDelete, Key: key, PrevValue: prev})
	return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	if _, exists := s.data[key]; exists {
		s.mu.Unlock()
		return roerrors.AlreadyExists("key " + key + " already exists")
	}
	cp := append([]byte(nil), value...)
	s.data[key] = cp
	watchers := append([]*memoryWatch(nil), s.watchers...)
	s.mu.Unlock()

	s.dispatch(watchers, key, Event{Type: EventPut, Key: key, Value: cp})
	return nil
}

func (s *MemoryStore) WatchPrefix(ctx context.Context, prefix string) (<-chan Event, error) {
	w := &memoryWatch{prefix: prefix, ch: make(chan Event, 256)}
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, existing := range s.watchers {
			if existing == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(w.ch)
	}()

	return w.ch, nil
}

func (s *MemoryStore) dispatch(watchers []*memoryWatch, key string, ev Event) {
	for _, w := range watchers {
		if strings.HasPrefix(key, w.prefix) {
			select {
			case w.ch <- ev:
			default:
			}
		}
	}
}

func (s *MemoryStore) Close() error { return nil }
