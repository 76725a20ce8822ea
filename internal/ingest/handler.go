package ingest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/membridge/membridge/internal/api"
	"github.com/membridge/membridge/internal/pipeline"
)

// SnapshotRequest carries a conversation snapshot submitted over HTTP.
type SnapshotRequest struct {
	SessionID string                      `json:"session_id" validate:"required"`
	Turns     []pipeline.ConversationTurn `json:"turns" validate:"required,min=1,dive"`
}

type snapshotAccepted struct {
	ReceiptID string `json:"receipt_id"`
	SessionID string `json:"session_id"`
	QueueSize int    `json:"queue_size"`
}

// Handler exposes the snapshot intake endpoint.
type Handler struct {
	scheduler *pipeline.Scheduler
	validate  *validator.Validate
}

func NewHandler(scheduler *pipeline.Scheduler) *Handler {
	return &Handler{
		scheduler: scheduler,
		validate:  validator.New(),
	}
}

// Submit accepts a snapshot of the conversation so far. Delivery is
// asynchronous; the response only confirms enqueueing.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	h.scheduler.EnqueueSnapshot(r.Context(), req.SessionID, req.Turns)

	receiptID := uuid.New().String()
	stats := h.scheduler.Stats()
	slog.Debug("snapshot accepted",
		"receipt_id", receiptID, "session_id", req.SessionID, "turns", len(req.Turns), "queue_size", stats.QueueSize)

	api.JSON(w, http.StatusAccepted, snapshotAccepted{
		ReceiptID: receiptID,
		SessionID: req.SessionID,
		QueueSize: stats.QueueSize,
	})
}
