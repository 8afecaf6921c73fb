package partition

import (
	"context"
	"sync"

	"github.com/flowlog/partitionstore/internal/segment"
)

// Deduplicator is the externally owned set of recently seen message
// IDs. try_insert is asynchronous in the source system (it may itself
// be backed by I/O or cross-node coordination); the Go port keeps the
// same shape via a context-aware method even though the bundled
// MapDeduplicator never suspends.
type Deduplicator interface {
	TryInsert(ctx context.Context, id segment.MessageID) (bool, error)
}

// MapDeduplicator is an in-process Deduplicator implementation,
// standing in for the real cluster-aware deduplicator this package only
// consumes through an interface. It keeps every ID it has seen; nothing
// is ever evicted, so its size is not bounded.
type MapDeduplicator struct {
	mu   sync.Mutex
	seen map[segment.MessageID]struct{}
}

func NewMapDeduplicator() *MapDeduplicator {
	return &MapDeduplicator{seen: make(map[segment.MessageID]struct{})}
}

func (d *MapDeduplicator) TryInsert(_ context.Context, id segment.MessageID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false, nil
	}
	d.seen[id] = struct{}{}
	return true, nil
}

func (d *MapDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
