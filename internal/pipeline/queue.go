package pipeline

import "github.com/membridge/membridge/internal/graphmem"

// Queue is an ordered, bounded buffer of group-tagged messages. It is
// a single sequence across all groups; group partitioning happens on
// read in TakeBatch. Not safe for concurrent use; the scheduler
// serializes access.
type Queue struct {
	entries []Entry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends the messages in order and enforces the size bound by
// evicting entries from the front, oldest first regardless of group.
// This is the queue's only backpressure mechanism. Returns the number
// of entries dropped.
func (q *Queue) Enqueue(groupID string, messages []graphmem.Message, maxQueueSize int) int {
	for _, m := range messages {
		q.entries = append(q.entries, Entry{GroupID: groupID, Message: m})
	}
	dropped := 0
	if maxQueueSize > 0 && len(q.entries) > maxQueueSize {
		dropped = len(q.entries) - maxQueueSize
		q.entries = append(q.entries[:0:0], q.entries[dropped:]...)
	}
	return dropped
}

// TakeBatch removes and returns a maximal contiguous run of front
// entries sharing the front entry's group, up to maxBatchSize. Entries
// of other groups are left in place, never skipped over, so queue
// order and per-group locality are both preserved. Returns nil when
// the queue is empty.
func (q *Queue) TakeBatch(maxBatchSize int) *Batch {
	if len(q.entries) == 0 {
		return nil
	}
	groupID := q.entries[0].GroupID
	n := 0
	for n < len(q.entries) && n < maxBatchSize && q.entries[n].GroupID == groupID {
		n++
	}
	msgs := make([]graphmem.Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = q.entries[i].Message
	}
	q.entries = append(q.entries[:0:0], q.entries[n:]...)
	return &Batch{GroupID: groupID, Messages: msgs}
}

// RequeueBatch reinserts a failed batch at the front of the queue in
// its original relative order, so it is retried before anything newer.
func (q *Queue) RequeueBatch(batch *Batch) {
	if batch == nil || len(batch.Messages) == 0 {
		return
	}
	front := make([]Entry, 0, len(batch.Messages)+len(q.entries))
	for _, m := range batch.Messages {
		front = append(front, Entry{GroupID: batch.GroupID, Message: m})
	}
	q.entries = append(front, q.entries...)
}

func (q *Queue) Size() int {
	return len(q.entries)
}

func (q *Queue) Clear() {
	q.entries = nil
}
