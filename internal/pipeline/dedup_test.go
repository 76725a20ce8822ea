package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup_SeenAfterMark(t *testing.T) {
	d := NewDedupTracker(10, 10)
	assert.False(t, d.Seen("g1", "t1"))

	d.MarkSeen("g1", "t1")
	assert.True(t, d.Seen("g1", "t1"))
	assert.False(t, d.Seen("g1", "t2"))
	assert.False(t, d.Seen("g2", "t1"))
}

func TestDedup_TurnEvictionLRU(t *testing.T) {
	d := NewDedupTracker(10, 3)
	d.MarkSeen("g1", "t1")
	d.MarkSeen("g1", "t2")
	d.MarkSeen("g1", "t3")

	// Touch t1 so t2 becomes least recently used.
	assert.True(t, d.Seen("g1", "t1"))

	d.MarkSeen("g1", "t4")
	assert.True(t, d.Seen("g1", "t1"))
	assert.False(t, d.Seen("g1", "t2"))
	assert.True(t, d.Seen("g1", "t3"))
	assert.True(t, d.Seen("g1", "t4"))
}

func TestDedup_GroupEvictionDropsWholeWindow(t *testing.T) {
	d := NewDedupTracker(2, 10)
	d.MarkSeen("g1", "t1")
	d.MarkSeen("g2", "t1")

	// Touch g1 so g2 is the LRU group.
	d.Seen("g1", "t1")

	d.MarkSeen("g3", "t1")
	assert.True(t, d.Seen("g1", "t1"))
	assert.False(t, d.Seen("g2", "t1"))
	assert.True(t, d.Seen("g3", "t1"))
}

func TestDedup_BoundedMemory(t *testing.T) {
	d := NewDedupTracker(5, 5)
	for g := 0; g < 20; g++ {
		for turn := 0; turn < 20; turn++ {
			d.MarkSeen(fmt.Sprintf("g%d", g), fmt.Sprintf("t%d", turn))
		}
	}
	assert.LessOrEqual(t, d.groups.len(), 5)
	for _, el := range d.groups.items {
		assert.LessOrEqual(t, el.Value.(*lruEntry[string, *lruMap[string, struct{}]]).val.len(), 5)
	}
}

func TestDedup_KnownGroup(t *testing.T) {
	d := NewDedupTracker(10, 10)
	assert.False(t, d.KnownGroup("g1"))
	d.MarkSeen("g1", "t1")
	assert.True(t, d.KnownGroup("g1"))
}

func TestDedup_Reset(t *testing.T) {
	d := NewDedupTracker(10, 10)
	d.MarkSeen("g1", "t1")
	d.Reset()
	assert.False(t, d.Seen("g1", "t1"))
	assert.False(t, d.KnownGroup("g1"))
}
