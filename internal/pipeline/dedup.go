package pipeline

// DedupTracker remembers which turn IDs have already been queued per
// delivery group, so repeated snapshots of the same conversation do
// not re-enqueue. Both levels are LRU-bounded: the set of tracked
// groups and the turn window within each group. Eviction means a very
// old turn could be redelivered after extreme churn, which is
// acceptable: delivery is at-most-once per dedup window, not
// exactly-once. Not safe for concurrent use.
type DedupTracker struct {
	maxGroups int
	maxTurns  int
	groups    *lruMap[string, *lruMap[string, struct{}]]
}

func NewDedupTracker(maxGroups, maxTurns int) *DedupTracker {
	return &DedupTracker{
		maxGroups: maxGroups,
		maxTurns:  maxTurns,
		groups:    newLRUMap[string, *lruMap[string, struct{}]](maxGroups),
	}
}

// Seen reports whether the turn is within the group's dedup window,
// touching both the group and, when present, the turn.
func (d *DedupTracker) Seen(groupID, turnID string) bool {
	turns, ok := d.groups.get(groupID)
	if !ok {
		return false
	}
	_, seen := turns.get(turnID)
	return seen
}

// MarkSeen records the turn in the group's window, creating the group
// lazily and touching both levels.
func (d *DedupTracker) MarkSeen(groupID, turnID string) {
	turns, ok := d.groups.get(groupID)
	if !ok {
		turns = newLRUMap[string, struct{}](d.maxTurns)
		d.groups.put(groupID, turns)
	}
	turns.put(turnID, struct{}{})
}

// KnownGroup reports whether the group is currently tracked, without
// touching it.
func (d *DedupTracker) KnownGroup(groupID string) bool {
	return d.groups.contains(groupID)
}

// Reset drops all state. Dedup correctness is scoped to one delivery
// configuration, so any endpoint/scope/strategy change must reset.
func (d *DedupTracker) Reset() {
	d.groups = newLRUMap[string, *lruMap[string, struct{}]](d.maxGroups)
}
