package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/membridge/membridge/internal/config"
	"github.com/membridge/membridge/internal/graphmem"
	"github.com/membridge/membridge/internal/metrics"
	"github.com/membridge/membridge/internal/scope"
)

// ResolvedConfig is a delivery configuration that passed fail-closed
// resolution: pipeline enabled, workspace trusted, endpoint set and
// consented.
type ResolvedConfig struct {
	config.PipelineConfig
	Endpoint string
}

func (c ResolvedConfig) fingerprint() string {
	return c.Endpoint + "|" + c.Scopes + "|" + c.GroupStrategy
}

// Resolver resolves the current delivery configuration. ok is false
// whenever delivery must not happen: disabled, workspace untrusted,
// endpoint unset or un-consented. Callers never learn why.
type Resolver interface {
	Resolve(ctx context.Context) (ResolvedConfig, bool)
}

// OwnershipProvider supplies the optional ownership-context system
// message and per-message source description.
type OwnershipProvider interface {
	ContextMessage() (graphmem.Message, bool)
	SourceDescription() string
}

// SchedulerOptions carries the optional collaborators and dedup
// capacities for a Scheduler.
type SchedulerOptions struct {
	Ownership      OwnershipProvider
	OnDelivered    DeliveredFunc
	DedupMaxGroups int
	DedupMaxTurns  int
}

// Scheduler owns the ingestion queue, the dedup tracker and the
// backfill state, and is the only component that calls the memory
// service for delivery. All state lives behind one mutex; the mutex is
// released around the external client call so producers can keep
// enqueueing during a flush. Producers get fire-and-forget semantics:
// no failure inside the scheduler ever propagates to them.
type Scheduler struct {
	client    Client
	resolver  Resolver
	ownership OwnershipProvider
	delivered DeliveredFunc

	mu            sync.Mutex
	queue         *Queue
	dedup         *DedupTracker
	backfill      map[string]*backfillState
	flushTimer    *time.Timer
	retryTimer    *time.Timer
	backfillTimer *time.Timer
	flushing      bool
	flushAgain    bool
	nextBackoff   time.Duration
	fingerprint   string
	epoch         uint64
	disposed      bool
}

func NewScheduler(client Client, resolver Resolver, opts SchedulerOptions) *Scheduler {
	if opts.DedupMaxGroups <= 0 {
		opts.DedupMaxGroups = 50
	}
	if opts.DedupMaxTurns <= 0 {
		opts.DedupMaxTurns = 500
	}
	return &Scheduler{
		client:    client,
		resolver:  resolver,
		ownership: opts.Ownership,
		delivered: opts.OnDelivered,
		queue:     NewQueue(),
		dedup:     NewDedupTracker(opts.DedupMaxGroups, opts.DedupMaxTurns),
		backfill:  make(map[string]*backfillState),
	}
}

// EnqueueSnapshot ingests a conversation snapshot. Only the latest
// turn is enqueued immediately; older not-yet-seen turns are left to
// the backfill loop. Best effort: invalid configuration is a silent
// no-op that also clears any in-flight state.
func (s *Scheduler) EnqueueSnapshot(ctx context.Context, sessionID string, turns []ConversationTurn) {
	if sessionID == "" || len(turns) == 0 {
		return
	}
	cfg, ok := s.resolver.Resolve(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if !ok {
		s.resetLocked()
		return
	}
	s.applyConfigLocked(cfg)

	latest := turns[len(turns)-1]
	for _, tgt := range scope.Targets(cfg.PipelineConfig, sessionID) {
		if s.dedup.Seen(tgt.GroupID, latest.TurnID) {
			continue
		}
		msgs := s.turnMessages(cfg, s.dedup.KnownGroup(tgt.GroupID), latest)
		s.dedup.MarkSeen(tgt.GroupID, latest.TurnID)
		s.enqueueLocked(tgt, msgs, cfg)
	}

	// Record or refresh backfill state. A fresh snapshot never advances
	// the cursor past what was already confirmed, so older unseen turns
	// stay eligible.
	st := s.backfill[sessionID]
	if st == nil {
		st = &backfillState{}
		s.backfill[sessionID] = st
	}
	st.turns = turns
	if st.cursor > len(turns) {
		st.cursor = len(turns)
	}
	metrics.BackfillSessions.Set(float64(len(s.backfill)))

	s.scheduleBackfillLocked(cfg)
	s.scheduleFlushLocked(cfg)
}

func (s *Scheduler) enqueueLocked(tgt scope.Target, msgs []graphmem.Message, cfg ResolvedConfig) {
	dropped := s.queue.Enqueue(tgt.GroupID, msgs, cfg.MaxQueueSize)
	if dropped > 0 {
		metrics.EntriesDroppedTotal.Add(float64(dropped))
		slog.Debug("pipeline: queue over capacity, dropped oldest entries", "dropped", dropped)
	}
	metrics.TurnsEnqueuedTotal.WithLabelValues(string(tgt.Scope)).Inc()
	metrics.QueueSize.Set(float64(s.queue.Size()))
}

func (s *Scheduler) turnMessages(cfg ResolvedConfig, groupKnown bool, turn ConversationTurn) []graphmem.Message {
	ts := time.UnixMilli(turn.TimestampMs).UTC().Format(time.RFC3339)

	var msgs []graphmem.Message
	// On first contact with a group, lead with the synthetic ownership
	// context so the graph can attribute the conversation.
	if !groupKnown && cfg.IncludeOwnership && s.ownership != nil {
		if m, ok := s.ownership.ContextMessage(); ok {
			msgs = append(msgs, m)
		}
	}

	user := graphmem.Message{
		RoleType:  graphmem.RoleUser,
		Role:      "user",
		Content:   truncate(turn.UserMessage, cfg.MaxMessageChars),
		Timestamp: ts,
	}
	if cfg.IncludeSourceDesc && s.ownership != nil {
		user.SourceDescription = s.ownership.SourceDescription()
	}
	assistant := graphmem.Message{
		RoleType:  graphmem.RoleAssistant,
		Role:      "assistant",
		Content:   truncate(turn.AssistantMessage, cfg.MaxMessageChars),
		Timestamp: ts,
	}
	return append(msgs, user, assistant)
}

// applyConfigLocked detects a changed delivery configuration and
// performs the deliberate full reset: group IDs and consent are
// configuration-dependent, so partial invalidation is never safe.
func (s *Scheduler) applyConfigLocked(cfg ResolvedConfig) {
	fp := cfg.fingerprint()
	if s.fingerprint != "" && s.fingerprint != fp {
		slog.Info("pipeline: delivery configuration changed, resetting state")
		s.resetLocked()
	}
	s.fingerprint = fp
}

// scheduleFlushLocked arms the debounce timer unless a flush or retry
// timer is already pending. Work arriving mid-flush sets the repeat
// flag instead, so it is picked up without overlapping flushes.
func (s *Scheduler) scheduleFlushLocked(cfg ResolvedConfig) {
	if s.flushing {
		s.flushAgain = true
		return
	}
	if s.flushTimer != nil || s.retryTimer != nil {
		return
	}
	epoch := s.epoch
	s.flushTimer = time.AfterFunc(cfg.FlushDebounce, func() { s.flushDue(epoch) })
}

func (s *Scheduler) flushDue(epoch uint64) {
	s.mu.Lock()
	if s.disposed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.flushTimer = nil
	if s.flushing {
		s.flushAgain = true
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()
	s.flush(epoch)
}

func (s *Scheduler) retryDue(epoch uint64) {
	s.mu.Lock()
	if s.disposed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.retryTimer = nil
	if s.flushing {
		s.flushAgain = true
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()
	s.flush(epoch)
}

// flush drains the queue batch by batch. A single failed batch halts
// the whole loop: batches come off the front, and a front-of-queue
// failure must be retried before anything behind it may proceed. That
// head-of-line blocking is the price of per-group ordering.
//
// epoch identifies the state generation this flush was armed for. If a
// reset intervenes, the reset cleared the flushing flag and whoever
// enqueues next arms a fresh flush, so a stale flush must abandon
// without touching any state it no longer owns.
func (s *Scheduler) flush(epoch uint64) {
	ctx := context.Background()
	cfg, ok := s.resolver.Resolve(ctx)

	s.mu.Lock()
	if s.disposed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if !ok {
		s.resetLocked()
		s.mu.Unlock()
		return
	}
	s.applyConfigLocked(cfg)
	s.flushing = true
	epoch = s.epoch

	for {
		batch := s.queue.TakeBatch(cfg.MaxBatchSize)
		if batch == nil {
			break
		}

		s.mu.Unlock()
		err := s.client.AddMessages(ctx, batch.GroupID, batch.Messages)
		s.mu.Lock()

		if s.disposed || epoch != s.epoch {
			// State was reset while the call was in flight; the batch
			// belongs to the old configuration.
			s.mu.Unlock()
			return
		}

		if err != nil {
			s.queue.RequeueBatch(batch)
			metrics.BatchesFailedTotal.Inc()
			metrics.QueueSize.Set(float64(s.queue.Size()))
			slog.Warn("pipeline: batch delivery failed, backing off",
				"group_id", batch.GroupID, "messages", len(batch.Messages), "error", err)
			s.scheduleRetryLocked(cfg)
			break
		}

		s.nextBackoff = 0
		metrics.BatchesDeliveredTotal.Inc()
		metrics.QueueSize.Set(float64(s.queue.Size()))
		slog.Debug("pipeline: batch delivered", "group_id", batch.GroupID, "messages", len(batch.Messages))

		if s.delivered != nil {
			cb, groupID, n := s.delivered, batch.GroupID, len(batch.Messages)
			s.mu.Unlock()
			cb(groupID, n)
			s.mu.Lock()
			if s.disposed || epoch != s.epoch {
				s.mu.Unlock()
				return
			}
		}
	}

	s.flushing = false
	if s.flushAgain {
		s.flushAgain = false
		s.scheduleFlushLocked(cfg)
	}
	s.mu.Unlock()
}

func (s *Scheduler) scheduleRetryLocked(cfg ResolvedConfig) {
	if s.retryTimer != nil {
		return
	}
	delay := s.nextBackoff
	if delay <= 0 {
		delay = cfg.BackoffInitial
	}
	next := delay * 2
	if next > cfg.BackoffMax {
		next = cfg.BackoffMax
	}
	s.nextBackoff = next

	epoch := s.epoch
	s.retryTimer = time.AfterFunc(delay, func() { s.retryDue(epoch) })
	slog.Debug("pipeline: retry scheduled", "delay", delay)
}

// Reset clears the queue, all dedup windows, all backfill state and
// every pending timer. Invoked on configuration change, consent
// withdrawal or workspace distrust.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Dispose is Reset plus a permanent stop; the scheduler accepts no
// further work afterwards.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.resetLocked()
}

func (s *Scheduler) resetLocked() {
	stopTimer(&s.flushTimer)
	stopTimer(&s.retryTimer)
	stopTimer(&s.backfillTimer)
	s.queue.Clear()
	s.dedup.Reset()
	s.backfill = make(map[string]*backfillState)
	s.nextBackoff = 0
	// Any in-flight flush belongs to the old generation and will abandon
	// on its epoch check; releasing the flag here lets the very next
	// enqueue arm a fresh flush instead of leaning on flushAgain.
	s.flushing = false
	s.flushAgain = false
	s.fingerprint = ""
	s.epoch++
	metrics.QueueSize.Set(0)
	metrics.BackfillSessions.Set(0)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// Stats is a point-in-time snapshot for diagnostics.
type Stats struct {
	QueueSize        int  `json:"queue_size"`
	BackfillSessions int  `json:"backfill_sessions"`
	Flushing         bool `json:"flushing"`
	RetryPending     bool `json:"retry_pending"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		QueueSize:        s.queue.Size(),
		BackfillSessions: len(s.backfill),
		Flushing:         s.flushing,
		RetryPending:     s.retryTimer != nil,
	}
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
