package kv

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
)

// EtcdStore implements Store on top of etcd's clientv3.
type EtcdStore struct {
	client         *clientv3.Client
	requestTimeout time.Duration
	retryBudget    int
	retryBackoff   time.Duration
	log            *logger.Logger

	degraded bool
}

// EtcdConfig configures a new EtcdStore.
type EtcdConfig struct {
	Endpoints      []string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	RetryBudget    int
	RetryBackoff   time.Duration
}

// NewEtcdStore dials etcd and returns a Store. Connection establishment is
// retried by clientv3 internally; wait_for_etcd-style blocking is the
// caller's responsibility via bootstrap's cleanup/ready ordering.
func NewEtcdStore(cfg EtcdConfig, log *logger.Logger) (*EtcdStore, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial etcd: %w", err)
	}

	return &EtcdStore{
		client:         client,
		requestTimeout: cfg.RequestTimeout,
		retryBudget:    cfg.RetryBudget,
		retryBackoff:   cfg.RetryBackoff,
		log:            log,
	}, nil
}

// Degraded reports whether the watch-establishment retry budget has been
// exhausted at least once since startup. Other components may poll this to
// decide whether to report themselves as not ready.
func (s *EtcdStore) Degraded() bool { return s.degraded }

func (s *EtcdStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.requestTimeout)
}

func (s *EtcdStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Put(ctx, key, string(value))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, roerrors.NotFound(fmt.Sprintf("key %s not found", key))
	}
	return resp.Kvs[0].Value, nil
}

func (s *EtcdStore) GetPrefix(ctx context.Context, prefix string) ([]KV, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get prefix %s: %w", prefix, err)
	}
	out := make([]KV, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, KV{Key: string(kv.Key), Value: kv.Value})
	}
	return out, nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent uses a single-operation transaction comparing the key's
// CreateRevision to 0 (absent) before writing, giving compare-and-swap
// create semantics without a separate read.
func (s *EtcdStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return fmt.Errorf("put-if-absent %s: %w", key, err)
	}
	if !resp.Succeeded {
		return roerrors.AlreadyExists(fmt.Sprintf("key %s already exists", key))
	}
	return nil
}

// WatchPrefix retries watch establishment with exponential backoff up to
// RetryBudget attempts; once exhausted it marks the store degraded and
// gives up rather than looping forever, per the adapter's no-crash policy.
func (s *EtcdStore) WatchPrefix(ctx context.Context, prefix string) (<-chan Event, error) {
	out := make(chan Event, 256)

	watchChan, err := s.establishWatch(ctx, prefix)
	if err != nil {
		close(out)
		return out, err
	}

	go s.pumpWatch(ctx, prefix, watchChan, out)
	return out, nil
}

func (s *EtcdStore) establishWatch(ctx context.Context, prefix string) (clientv3.WatchChan, error) {
	backoff := s.retryBackoff
	var lastErr error
	for attempt := 0; attempt < s.retryBudget; attempt++ {
		watchCtx, cancel := context.WithCancel(ctx)
		_ = cancel // the watch itself is canceled when ctx is canceled upstream
		ch := s.client.Watch(watchCtx, prefix, clientv3.WithPrefix(), clientv3.WithPrevKV())
		select {
		case resp, ok := <-ch:
			if !ok {
				lastErr = fmt.Errorf("watch channel closed immediately")
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			if resp.Err() != nil {
				lastErr = resp.Err()
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			// Got a real (possibly empty) response; re-establish a fresh
			// watch from the current revision so we don't drop this event.
			return s.client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithPrevKV(), clientv3.WithRev(resp.Header.Revision)), nil
		case <-time.After(100 * time.Millisecond):
			// No error surfaced quickly; treat the watch as established.
			return ch, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.degraded = true
	s.log.Error("etcd watch retry budget exhausted", "prefix", prefix, "error", lastErr)
	return nil, fmt.Errorf("establish watch on %s after %d attempts: %w", prefix, s.retryBudget, lastErr)
}

func (s *EtcdStore) pumpWatch(ctx context.Context, prefix string, in clientv3.WatchChan, out chan<- Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-in:
			if !ok {
				return
			}
			if err := resp.Err(); err != nil {
				s.log.Error("etcd watch error", "prefix", prefix, "error", err)
				return
			}
			for _, ev := range resp.Events {
				e := Event{Key: string(ev.Kv.Key)}
				if ev.PrevKv != nil {
					e.PrevValue = ev.PrevKv.Value
				}
				switch ev.Type {
				case clientv3.EventTypePut:
					e.Type = EventPut
					e.Value = ev.Kv.Value
				case clientv3.EventTypeDelete:
					e.Type = EventDelete
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}
