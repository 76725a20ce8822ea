package pipeline

import (
	"context"

	"github.com/membridge/membridge/internal/graphmem"
)

// ConversationTurn is one user/assistant exchange produced upstream.
type ConversationTurn struct {
	TurnID           string `json:"turn_id"`
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
	TimestampMs      int64  `json:"timestamp_ms"`
}

// Entry is one queued message bound for a delivery group.
type Entry struct {
	GroupID string
	Message graphmem.Message
}

// Batch is the unit of network delivery: a contiguous run of queued
// messages sharing one group.
type Batch struct {
	GroupID  string
	Messages []graphmem.Message
}

// Client is the slice of the memory service the scheduler is allowed
// to call.
type Client interface {
	AddMessages(ctx context.Context, groupID string, messages []graphmem.Message) error
}

// DeliveredFunc is invoked after each successfully delivered batch,
// outside the scheduler lock.
type DeliveredFunc func(groupID string, count int)
