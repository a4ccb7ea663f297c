package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmohq/cosmo-core/internal/auth"
	"github.com/cosmohq/cosmo-core/internal/httputil"
	"github.com/cosmohq/cosmo-core/internal/orchestrator"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// Pipeline is the slice of the orchestrator the handlers need.
type Pipeline interface {
	Orchestrate(ctx context.Context, req types.NormalizedRequest) types.ExecutionResult
}

// ModelLister serves the model catalog for GET /v1/models.
type ModelLister interface {
	LoadModels(ctx context.Context) ([]types.ModelCandidate, error)
}

// SpendRecorder accumulates per-workspace daily spend.
type SpendRecorder interface {
	RecordSpend(ctx context.Context, workspaceID string, costCents int64) error
}

// Handler holds dependencies for the COSMO HTTP handlers.
type Handler struct {
	pipeline    Pipeline
	models      ModelLister
	intentCache *store.IntentCache
	health      *router.HealthTracker
	spend       SpendRecorder
	version     string
	hideDebug   bool
}

func NewHandler(pipeline Pipeline, models ModelLister, intentCache *store.IntentCache, health *router.HealthTracker, version string) *Handler {
	return &Handler{
		pipeline:    pipeline,
		models:      models,
		intentCache: intentCache,
		health:      health,
		version:     version,
	}
}

// WithSpendRecorder wires daily budget accounting. Set during wiring.
func (h *Handler) WithSpendRecorder(spend SpendRecorder) *Handler {
	h.spend = spend
	return h
}

// WithDebugOutput controls whether response envelopes carry the debug
// bag. Spend accounting still sees the cost either way.
func (h *Handler) WithDebugOutput(enabled bool) *Handler {
	h.hideDebug = !enabled
	return h
}

// Chat handles POST /v1/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var payload orchestrator.ChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	req, cerr := orchestrator.NormalizeChat(payload, reqID)
	if cerr != nil {
		httputil.WriteCosmoError(w, reqID, cerr)
		return
	}
	h.run(w, r, req)
}

// Webhook handles POST /v1/webhooks/{source}.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	source := chi.URLParam(r, "source")

	var payload orchestrator.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	req, cerr := orchestrator.NormalizeWebhook(source, payload, reqID)
	if cerr != nil {
		httputil.WriteCosmoError(w, reqID, cerr)
		return
	}
	h.run(w, r, req)
}

// RunTask handles POST /v1/tasks/run.
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var payload orchestrator.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	req, cerr := orchestrator.NormalizeTask(payload, reqID)
	if cerr != nil {
		httputil.WriteCosmoError(w, reqID, cerr)
		return
	}
	h.run(w, r, req)
}

// AgentAction handles POST /v1/agent/actions.
func (h *Handler) AgentAction(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var payload orchestrator.AgentActionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	req, cerr := orchestrator.NormalizeAgentAction(payload, reqID)
	if cerr != nil {
		httputil.WriteCosmoError(w, reqID, cerr)
		return
	}
	h.run(w, r, req)
}

// run fills caller identity from the auth context and executes the
// pipeline. The envelope is returned as-is; failed requests carry the
// HTTP status of their error code.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, req types.NormalizedRequest) {
	reqID := w.Header().Get("X-Request-ID")

	if info, ok := auth.AuthFromContext(r.Context()); ok {
		if req.Context.WorkspaceID == "" {
			req.Context.WorkspaceID = info.WorkspaceID
		}
		if req.Context.UserID == "" {
			req.Context.UserID = info.UserID
		}
	}

	result := h.pipeline.Orchestrate(r.Context(), req)
	status := http.StatusOK
	if !result.Success && result.Error != nil {
		status = result.Error.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
	}

	if h.spend != nil && result.Success && result.Debug != nil && req.Context.WorkspaceID != "" {
		if cents := int64(result.Debug.CostUSD*100 + 0.5); cents > 0 {
			workspaceID := req.Context.WorkspaceID
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := h.spend.RecordSpend(ctx, workspaceID, cents); err != nil {
					slog.Warn("failed to record spend", "workspace_id", workspaceID, "error", err)
				}
			}()
		}
	}

	if h.hideDebug {
		result.Debug = nil
	}
	httputil.WriteJSON(w, reqID, status, result)
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	models, err := h.models.LoadModels(r.Context())
	if err != nil {
		httputil.WriteError(w, reqID, types.CodeModelUnavailable, "Model catalog unavailable")
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}

// Health handles GET /cosmo/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body := map[string]any{
		"status":  "healthy",
		"version": h.version,
	}
	if h.health != nil {
		body["providers"] = h.health.Snapshot()
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, body)
}

// RefreshIntentCache handles POST /cosmo/v1/admin/intent-cache/refresh.
// It invalidates the snapshot and reloads synchronously so the caller
// learns whether the registry is reachable.
func (h *Handler) RefreshIntentCache(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	h.intentCache.Invalidate()
	if err := h.intentCache.Refresh(r.Context()); err != nil {
		httputil.WriteError(w, reqID, types.CodeInternal, "Intent registry reload failed: "+err.Error())
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, map[string]string{"status": "refreshed"})
}
