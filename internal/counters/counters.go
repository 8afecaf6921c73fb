// Package counters implements the shared atomic counters back-referenced
// by partitions and segments but owned by a parent aggregation layer
// (topic/stream), per the "cycles between partitions, segments, and
// parent counters" design note: modeled as an owning tree plus
// separately-owned shared counters referenced by handle, not mutual
// ownership.
package counters

import "sync/atomic"

// Counters tracks size_bytes, messages_count and segments_count for one
// level of the stream/topic/partition hierarchy. A Counters may chain to
// a Parent so that a delta applied at the partition level also
// propagates to the topic and stream totals above it.
type Counters struct {
	SizeBytes     atomic.Int64
	MessagesCount atomic.Int64
	SegmentsCount atomic.Int64
	Parent        *Counters
}

// New returns a detached Counters, used at the top of a hierarchy or in
// isolation (e.g. tests, the standalone CLI tool).
func New() *Counters {
	return &Counters{}
}

// Child returns a new Counters whose deltas also propagate to parent.
func Child(parent *Counters) *Counters {
	return &Counters{Parent: parent}
}

func (c *Counters) AddSize(delta int64) {
	for cur := c; cur != nil; cur = cur.Parent {
		cur.SizeBytes.Add(delta)
	}
}

func (c *Counters) AddMessages(delta int64) {
	for cur := c; cur != nil; cur = cur.Parent {
		cur.MessagesCount.Add(delta)
	}
}

func (c *Counters) AddSegments(delta int64) {
	for cur := c; cur != nil; cur = cur.Parent {
		cur.SegmentsCount.Add(delta)
	}
}

// Snapshot returns a point-in-time read of all three counters.
type Snapshot struct {
	SizeBytes     int64
	MessagesCount int64
	SegmentsCount int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		SizeBytes:     c.SizeBytes.Load(),
		MessagesCount: c.MessagesCount.Load(),
		SegmentsCount: c.SegmentsCount.Load(),
	}
}
