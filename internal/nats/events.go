package nats

import (
	"time"

	"github.com/membridge/membridge/internal/pipeline"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamTurns  = "MEMBRIDGE_TURNS"
	StreamEvents = "MEMBRIDGE_EVENTS"
)

// Subject constants.
const (
	SubjectSnapshot  = "membridge.turns.snapshot"
	SubjectDelivered = "membridge.events.delivered"
)

// SnapshotEvent is published by chat frontends whenever a conversation
// snapshot is available for ingestion.
type SnapshotEvent struct {
	SessionID  string                      `json:"session_id"`
	Turns      []pipeline.ConversationTurn `json:"turns"`
	ReceivedAt time.Time                   `json:"received_at"`
}

// DeliveredEvent is published after a batch lands in the memory
// service, for observers that track ingestion progress.
type DeliveredEvent struct {
	GroupID      string    `json:"group_id"`
	MessageCount int       `json:"message_count"`
	DeliveredAt  time.Time `json:"delivered_at"`
}
