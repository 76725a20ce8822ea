package recall

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/membridge/membridge/internal/api"
	"github.com/membridge/membridge/internal/graphmem"
)

// RecallRequest asks for facts relevant to a query.
type RecallRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query" validate:"required"`
}

type recallResponse struct {
	Facts []graphmem.Fact `json:"facts"`
}

// Handler exposes the recall endpoint.
type Handler struct {
	agg      *Aggregator
	validate *validator.Validate
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{
		agg:      agg,
		validate: validator.New(),
	}
}

// Search returns facts from the enabled scopes. An empty result is a
// valid answer, not an error.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req RecallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	facts := h.agg.Facts(r.Context(), req.SessionID, req.Query)
	if facts == nil {
		facts = []graphmem.Fact{}
	}

	api.JSON(w, http.StatusOK, recallResponse{Facts: facts})
}
