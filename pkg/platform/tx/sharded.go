package tx

import (
	"context"
	"sync"
	"time"
)

const (
	numShards        = 128
	defaultTxTimeout = 5 * time.Second
)

// FNV-1a constants for shard selection.
const (
	fnvOffset = 2166136261
	fnvPrime  = 16777619
)

// Sharded serializes logical transactions over in-memory stores. Callers
// record a shard key with WithLockKey before RunInTx; transactions sharing a
// key run one at a time while unrelated keys proceed in parallel. A nested
// RunInTx on an already-active context joins the outer transaction rather
// than acquiring a second lock.
type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewSharded returns a lock-based runner suitable for in-memory stores.
func NewSharded() *Sharded {
	return &Sharded{timeout: defaultTxTimeout}
}

// RunInTx executes fn while holding the mutex for the context's shard key.
// The callback receives a context marked active so downstream RunInTx calls
// join instead of re-locking.
func (s *Sharded) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if IsActive(ctx) {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return err
	}

	shard := &s.shards[selectShard(LockKey(ctx))]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(WithActive(ctx))
}

func selectShard(key string) int {
	hash := uint32(fnvOffset)
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= fnvPrime
	}
	return int(hash % numShards)
}
