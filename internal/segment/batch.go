package segment

// BatchAccumulator is the bounded in-memory buffer an open segment uses
// to hold records appended since the last persist, per the
// "BatchAccumulator is an externally defined buffer with new(current_
// offset, capacity) and append(batch)" callback contract. Persistence
// drains it; a segment that closes keeps its (then unused) accumulator.
type BatchAccumulator struct {
	capacity uint64
	records  []*Record
}

// NewBatchAccumulator creates an accumulator sized by capacity
// (partition.messages_required_to_save). currentOffset is accepted to
// match the external collaborator's constructor shape but isn't needed
// internally — each buffered Record already carries its own offset.
func NewBatchAccumulator(currentOffset uint64, capacity uint64) *BatchAccumulator {
	return &BatchAccumulator{
		capacity: capacity,
		records:  make([]*Record, 0, capacity),
	}
}

func (b *BatchAccumulator) Append(records []*Record) {
	b.records = append(b.records, records...)
}

func (b *BatchAccumulator) Len() int {
	return len(b.records)
}

func (b *BatchAccumulator) IsFull() bool {
	return uint64(len(b.records)) >= b.capacity
}

// Drain removes and returns every buffered record with Offset <= upper
// (or every buffered record, if upper is nil), preserving order.
func (b *BatchAccumulator) Drain(upper *uint64) []*Record {
	if upper == nil {
		out := b.records
		b.records = b.records[:0]
		return out
	}
	i := 0
	for i < len(b.records) && b.records[i].Offset <= *upper {
		i++
	}
	out := b.records[:i]
	b.records = append([]*Record(nil), b.records[i:]...)
	return out
}
