package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/auth"
	"github.com/ashita-ai/tenran/internal/model"
	"github.com/ashita-ai/tenran/internal/pipeline"
	"github.com/ashita-ai/tenran/internal/store"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	orch                *pipeline.Orchestrator
	authMgr             *auth.Manager
	store               store.Store
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Broker is optional; without it the events endpoint reports 503.
type HandlersDeps struct {
	Orchestrator        *pipeline.Orchestrator
	AuthMgr             *auth.Manager
	Store               store.Store
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		orch:                d.Orchestrator,
		authMgr:             d.AuthMgr,
		store:               d.Store,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleAuthToken handles POST /auth/token: exchanges the operator API
// key for a bearer token.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	clientName := r.Header.Get("X-Client-Name")
	if clientName == "" {
		clientName = "api-client"
	}

	token, expiresAt, err := h.authMgr.Exchange(req.APIKey, clientName)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// HandleSubmitSession handles POST /v1/sessions: validates the brief,
// creates the session and starts the pipeline. Returns 202 since the
// work continues in the background.
func (h *Handlers) HandleSubmitSession(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitSessionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	id, err := h.orch.Submit(r.Context(), req.Brief, req.Config)
	if err != nil {
		var precond *pipeline.PreconditionError
		if errors.As(err, &precond) {
			// Submit preconditions are brief validation failures.
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, precond.Reason)
			return
		}
		h.logger.Error("submit session", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create session")
		return
	}

	writeJSON(w, r, http.StatusAccepted, model.SubmitSessionResponse{
		SessionID: id,
		Phase:     model.PhaseCreated,
		StreamURL: fmt.Sprintf("/v1/sessions/%s/events", id),
	})
}

// HandleGetSession handles GET /v1/sessions/{session_id}: the full
// session snapshot, including every payload produced so far.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	state, err := h.orch.Status(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// HandleSelectArtists handles POST /v1/sessions/{session_id}/artists.
func (h *Handlers) HandleSelectArtists(w http.ResponseWriter, r *http.Request) {
	h.handleSelection(w, r, h.orch.SelectArtists)
}

// HandleSelectArtworks handles POST /v1/sessions/{session_id}/artworks.
func (h *Handlers) HandleSelectArtworks(w http.ResponseWriter, r *http.Request) {
	h.handleSelection(w, r, h.orch.SelectArtworks)
}

func (h *Handlers) handleSelection(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, id uuid.UUID, sel model.CandidateSelection) (model.SessionState, error),
) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req model.SelectionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	state, err := apply(r.Context(), id, model.CandidateSelection{Indices: req.Indices})
	if err != nil {
		var precond *pipeline.PreconditionError
		switch {
		case errors.As(err, &precond):
			writeError(w, r, http.StatusConflict, model.ErrCodePrecondition, precond.Reason)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
		default:
			h.logger.Error("apply selection", "session_id", id, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to apply selection")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, model.SelectionResponse{
		SessionID: id,
		Phase:     state.Phase,
		Selected:  len(req.Indices),
	})
}

// HandleGetProposal handles GET /v1/sessions/{session_id}/proposal.
func (h *Handlers) HandleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	proposal, err := h.orch.Proposal(r.Context(), id)
	if err != nil {
		var precond *pipeline.PreconditionError
		switch {
		case errors.As(err, &precond):
			writeError(w, r, http.StatusConflict, model.ErrCodePrecondition, precond.Reason)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
		default:
			h.logger.Error("get proposal", "session_id", id, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load proposal")
		}
		return
	}
	writeJSON(w, r, http.StatusOK, proposal)
}

// HandleSubscribe handles GET /v1/sessions/{session_id}/events: a
// per-session SSE stream of progress events.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "event streaming not available")
		return
	}

	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	// Reject streams for unknown sessions up front.
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe(id)
	defer h.broker.Unsubscribe(id, ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Store:   h.store.Kind(),
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}

// sessionID parses the {session_id} path value, writing a 400 on a
// malformed id.
func (h *Handlers) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "session_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
		return
	}
	h.logger.Error("store read", "error", err)
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "storage error")
}
