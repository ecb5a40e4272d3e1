package router

import (
	"hash/fnv"
	"sync"
)

// keyedMutex shards locks by string key so that handling for a single
// WorkflowRecord is strictly serial even if the bus redelivers a message
// for the same record to a second concurrent goroutine, while handling of
// unrelated records proceeds concurrently (spec §5's ordering guarantee).
type keyedMutex struct {
	shards []sync.Mutex
}

func newKeyedMutex(shardCount int) *keyedMutex {
	return &keyedMutex{shards: make([]sync.Mutex, shardCount)}
}

func (k *keyedMutex) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	shard := &k.shards[h.Sum32()%uint32(len(k.shards))]
	shard.Lock()
	return shard.Unlock
}
