package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/membridge/membridge/internal/api"
	"github.com/membridge/membridge/internal/consent"
	"github.com/membridge/membridge/internal/graphmem"
	"github.com/membridge/membridge/internal/pipeline"
)

// Handler exposes operator endpoints: inspection of stored episodes,
// remote group deletion, consent management and pipeline stats.
type Handler struct {
	client    *graphmem.Client
	store     *consent.Store
	scheduler *pipeline.Scheduler
	validate  *validator.Validate
}

func NewHandler(client *graphmem.Client, store *consent.Store, scheduler *pipeline.Scheduler) *Handler {
	return &Handler{
		client:    client,
		store:     store,
		scheduler: scheduler,
		validate:  validator.New(),
	}
}

// Episodes returns the most recent episodes stored for a group.
func (h *Handler) Episodes(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		api.HandleError(w, api.NewBadRequestError("missing group ID"))
		return
	}

	lastN := 10
	if n := r.URL.Query().Get("last_n"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 && v <= 100 {
			lastN = v
		}
	}

	episodes, err := h.client.GetEpisodes(r.Context(), groupID, lastN)
	if err != nil {
		slog.Error("fetching episodes", "group_id", groupID, "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}

	api.JSON(w, http.StatusOK, episodes)
}

// DeleteGroup removes all memory stored under a group.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		api.HandleError(w, api.NewBadRequestError("missing group ID"))
		return
	}

	if err := h.client.DeleteGroup(r.Context(), groupID); err != nil {
		slog.Error("deleting group", "group_id", groupID, "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}

	slog.Info("group deleted", "group_id", groupID)
	api.JSONMessage(w, http.StatusOK, "group deleted")
}

// MemoryHealth proxies the memory service healthcheck.
func (h *Handler) MemoryHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Healthcheck(r.Context()); err != nil {
		slog.Warn("memory service unhealthy", "error", err)
		api.JSONErrorMessage(w, http.StatusBadGateway, "memory service unhealthy")
		return
	}
	api.JSONMessage(w, http.StatusOK, "memory service healthy")
}

// Stats reports the scheduler's current state.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.scheduler.Stats())
}

// TrustRequest marks or unmarks a workspace as trusted.
type TrustRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Trusted     bool   `json:"trusted"`
}

func (h *Handler) SetTrust(w http.ResponseWriter, r *http.Request) {
	var req TrustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.store.SetTrusted(r.Context(), req.WorkspaceID, req.Trusted); err != nil {
		slog.Error("updating workspace trust", "workspace_id", req.WorkspaceID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	slog.Info("workspace trust updated", "workspace_id", req.WorkspaceID, "trusted", req.Trusted)
	api.JSONMessage(w, http.StatusOK, "trust updated")
}

// ConsentRequest grants or revokes consent for one endpoint.
type ConsentRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Endpoint    string `json:"endpoint" validate:"required,url"`
}

func (h *Handler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	h.updateConsent(w, r, true)
}

func (h *Handler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	h.updateConsent(w, r, false)
}

func (h *Handler) updateConsent(w http.ResponseWriter, r *http.Request, grant bool) {
	var req ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	var err error
	if grant {
		err = h.store.GrantEndpoint(r.Context(), req.WorkspaceID, req.Endpoint)
	} else {
		err = h.store.RevokeEndpoint(r.Context(), req.WorkspaceID, req.Endpoint)
	}
	if err != nil {
		slog.Error("updating endpoint consent", "workspace_id", req.WorkspaceID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	// Consent changes take effect on the next resolve; pending work for
	// a revoked endpoint is cleared eagerly.
	if !grant {
		h.scheduler.Reset()
	}

	slog.Info("endpoint consent updated", "workspace_id", req.WorkspaceID, "granted", grant)
	api.JSONMessage(w, http.StatusOK, "consent updated")
}
