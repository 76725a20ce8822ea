package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/membridge/membridge/internal/metrics"
	"github.com/membridge/membridge/internal/scope"
)

// backfillState tracks catch-up progress for one source conversation.
// cursor is the next turn index to consider and never decreases except
// when clamped to a shrunken snapshot.
type backfillState struct {
	turns  []ConversationTurn
	cursor int
}

func (s *Scheduler) scheduleBackfillLocked(cfg ResolvedConfig) {
	if s.backfillTimer != nil || len(s.backfill) == 0 {
		return
	}
	epoch := s.epoch
	s.backfillTimer = time.AfterFunc(cfg.BackfillInterval, func() { s.backfillTick(epoch) })
}

// backfillTick advances pending sessions by at most BackfillPerTick
// turns, enqueueing turns some scope has not yet seen. It never lets
// its own enqueues overflow the queue (that would evict unconfirmed
// entries) and it sits out entirely while a delivery backoff is
// active.
func (s *Scheduler) backfillTick(epoch uint64) {
	ctx := context.Background()
	cfg, ok := s.resolver.Resolve(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || epoch != s.epoch {
		return
	}
	s.backfillTimer = nil
	if !ok {
		s.resetLocked()
		return
	}
	s.applyConfigLocked(cfg)

	if s.retryTimer != nil {
		// The endpoint is already failing; adding more undelivered work
		// would only deepen the hole. Try again next interval.
		s.scheduleBackfillLocked(cfg)
		return
	}

	budget := cfg.BackfillPerTick
	enqueued := false
	full := false

	for sessionID, st := range s.backfill {
		for budget > 0 && st.cursor < len(st.turns) {
			turn := st.turns[st.cursor]

			// Capacity is checked scope by scope: a scope whose copy
			// fits proceeds even when the full fan-out would not, and
			// dedup guards it against re-enqueue on the next pass.
			stalled := false
			for _, tgt := range scope.Targets(cfg.PipelineConfig, sessionID) {
				if s.dedup.Seen(tgt.GroupID, turn.TurnID) {
					continue
				}
				msgs := s.turnMessages(cfg, s.dedup.KnownGroup(tgt.GroupID), turn)
				if len(msgs) > cfg.MaxQueueSize {
					// Would not fit even into an empty queue; waiting
					// cannot help, so stop retrying this copy.
					slog.Warn("pipeline: backfill turn exceeds queue capacity, skipping",
						"session_id", sessionID, "turn_id", turn.TurnID, "group_id", tgt.GroupID)
					s.dedup.MarkSeen(tgt.GroupID, turn.TurnID)
					continue
				}
				if s.queue.Size()+len(msgs) > cfg.MaxQueueSize {
					stalled = true
					break
				}
				s.dedup.MarkSeen(tgt.GroupID, turn.TurnID)
				s.enqueueLocked(tgt, msgs, cfg)
				enqueued = true
			}

			if stalled {
				// Stop the tick without advancing past this turn.
				full = true
				break
			}
			st.cursor++
			budget--
		}
		if st.cursor >= len(st.turns) {
			delete(s.backfill, sessionID)
		}
		if full || budget <= 0 {
			break
		}
	}

	metrics.BackfillSessions.Set(float64(len(s.backfill)))

	if enqueued {
		s.scheduleFlushLocked(cfg)
	}
	s.scheduleBackfillLocked(cfg)
}
