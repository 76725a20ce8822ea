package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membridge/membridge/internal/graphmem"
)

func msg(content string) graphmem.Message {
	return graphmem.Message{RoleType: graphmem.RoleUser, Role: "user", Content: content}
}

func msgs(contents ...string) []graphmem.Message {
	out := make([]graphmem.Message, len(contents))
	for i, c := range contents {
		out[i] = msg(c)
	}
	return out
}

func contents(b *Batch) []string {
	out := make([]string, len(b.Messages))
	for i, m := range b.Messages {
		out[i] = m.Content
	}
	return out
}

func TestQueue_EnqueueAndSize(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Size())

	dropped := q.Enqueue("g1", msgs("a", "b"), 10)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 2, q.Size())
}

func TestQueue_BackpressureDropsOldestFirst(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a", "b"), 3)
	dropped := q.Enqueue("g2", msgs("c", "d"), 3)

	assert.Equal(t, 1, dropped)
	assert.Equal(t, 3, q.Size())

	// "a" was oldest and must be gone; order of the rest unchanged.
	b := q.TakeBatch(10)
	require.NotNil(t, b)
	assert.Equal(t, "g1", b.GroupID)
	assert.Equal(t, []string{"b"}, contents(b))
}

func TestQueue_BackpressureBoundHoldsForAllSequences(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 50; i++ {
		q.Enqueue(fmt.Sprintf("g%d", i%3), msgs("x", "y", "z"), 10)
		assert.LessOrEqual(t, q.Size(), 10)
	}
}

func TestQueue_TakeBatchEmpty(t *testing.T) {
	assert.Nil(t, NewQueue().TakeBatch(5))
}

func TestQueue_TakeBatchSingleGroupOnly(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a", "b"), 10)
	q.Enqueue("g2", msgs("c"), 10)
	q.Enqueue("g1", msgs("d"), 10)

	b := q.TakeBatch(10)
	require.NotNil(t, b)
	assert.Equal(t, "g1", b.GroupID)
	assert.Equal(t, []string{"a", "b"}, contents(b))

	// g1/d is behind g2/c and must not be skipped forward.
	b = q.TakeBatch(10)
	require.NotNil(t, b)
	assert.Equal(t, "g2", b.GroupID)
	assert.Equal(t, []string{"c"}, contents(b))

	b = q.TakeBatch(10)
	require.NotNil(t, b)
	assert.Equal(t, "g1", b.GroupID)
	assert.Equal(t, []string{"d"}, contents(b))
}

func TestQueue_TakeBatchRespectsMaxBatchSize(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a", "b"), 10)
	q.Enqueue("g2", msgs("c"), 10)

	b := q.TakeBatch(1)
	require.NotNil(t, b)
	assert.Equal(t, []string{"a"}, contents(b))

	b = q.TakeBatch(1)
	require.NotNil(t, b)
	assert.Equal(t, []string{"b"}, contents(b))

	b = q.TakeBatch(1)
	require.NotNil(t, b)
	assert.Equal(t, "g2", b.GroupID)
	assert.Equal(t, []string{"c"}, contents(b))
}

func TestQueue_RequeuePreservesOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a", "b"), 10)

	b := q.TakeBatch(2)
	require.NotNil(t, b)
	assert.Equal(t, []string{"a", "b"}, contents(b))

	q.RequeueBatch(b)
	b = q.TakeBatch(2)
	require.NotNil(t, b)
	assert.Equal(t, []string{"a", "b"}, contents(b))
}

func TestQueue_RequeueGoesInFrontOfNewerEntries(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a"), 10)
	b := q.TakeBatch(1)
	require.NotNil(t, b)

	// Newer work for another group arrives while the batch is in flight.
	q.Enqueue("g2", msgs("z"), 10)
	q.RequeueBatch(b)

	first := q.TakeBatch(10)
	require.NotNil(t, first)
	assert.Equal(t, "g1", first.GroupID)
	assert.Equal(t, []string{"a"}, contents(first))
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Enqueue("g1", msgs("a", "b"), 10)
	q.Clear()
	assert.Equal(t, 0, q.Size())
	assert.Nil(t, q.TakeBatch(1))
}
