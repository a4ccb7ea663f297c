package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmohq/cosmo-core/internal/auth"
	"github.com/cosmohq/cosmo-core/internal/httputil"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

type fakePipeline struct {
	got    types.NormalizedRequest
	result types.ExecutionResult
}

func (f *fakePipeline) Orchestrate(_ context.Context, req types.NormalizedRequest) types.ExecutionResult {
	f.got = req
	return f.result
}

type fakeModels struct {
	models []types.ModelCandidate
	err    error
}

func (f fakeModels) LoadModels(context.Context) ([]types.ModelCandidate, error) {
	return f.models, f.err
}

type fakeIntentSource struct {
	intents []store.Intent
	err     error
}

func (f *fakeIntentSource) LoadIntents(context.Context) ([]store.Intent, error) {
	return f.intents, f.err
}

func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/chat", h.Chat)
	r.Post("/v1/webhooks/{source}", h.Webhook)
	r.Post("/v1/tasks/run", h.RunTask)
	r.Post("/v1/agent/actions", h.AgentAction)
	r.Get("/v1/models", h.ListModels)
	r.Get("/cosmo/v1/health", h.Health)
	r.Post("/cosmo/v1/admin/intent-cache/refresh", h.RefreshIntentCache)
	return r
}

func TestChatSuccess(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(map[string]any{"content": "hi"}, nil)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	body := strings.NewReader(`{"message": "hello there", "workspace_id": "ws-body"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result types.ExecutionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !result.Success {
		t.Error("expected success envelope")
	}
	if pipeline.got.Type != types.RequestTypeChat || pipeline.got.Prompt != "hello there" {
		t.Errorf("pipeline saw %+v", pipeline.got)
	}
}

func TestChatInjectsAuthIdentity(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, nil)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	mux := chi.NewRouter()
	mux.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.ContextWithAuth(r.Context(), &auth.AuthInfo{WorkspaceID: "ws-key", UserID: "u-key"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	mux.Post("/v1/chat", h.Chat)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if pipeline.got.Context.WorkspaceID != "ws-key" || pipeline.got.Context.UserID != "u-key" {
		t.Errorf("pipeline context = %+v, want auth identity", pipeline.got.Context)
	}
}

type fakeSpend struct {
	calls chan spendCall
}

type spendCall struct {
	workspaceID string
	cents       int64
}

func (f *fakeSpend) RecordSpend(_ context.Context, workspaceID string, costCents int64) error {
	f.calls <- spendCall{workspaceID: workspaceID, cents: costCents}
	return nil
}

func TestChatRecordsSpend(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, &types.DebugData{CostUSD: 0.12})}
	spend := &fakeSpend{calls: make(chan spendCall, 1)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test").WithSpendRecorder(spend)

	body := strings.NewReader(`{"message": "hi", "workspace_id": "ws-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	select {
	case call := <-spend.calls:
		if call.workspaceID != "ws-1" {
			t.Errorf("expected workspace ws-1, got %s", call.workspaceID)
		}
		if call.cents != 12 {
			t.Errorf("expected 12 cents, got %d", call.cents)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("spend was never recorded")
	}
}

func TestChatSkipsSpendBelowOneCent(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, &types.DebugData{CostUSD: 0.001})}
	spend := &fakeSpend{calls: make(chan spendCall, 1)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test").WithSpendRecorder(spend)

	body := strings.NewReader(`{"message": "hi", "workspace_id": "ws-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	select {
	case call := <-spend.calls:
		t.Fatalf("unexpected spend record: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatHidesDebugWhenDisabled(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, &types.DebugData{TokensUsed: 9})}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test").WithDebugOutput(false)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	var result types.ExecutionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Debug != nil {
		t.Errorf("expected debug bag to be stripped, got %+v", result.Debug)
	}
}

func TestChatInvalidJSON(t *testing.T) {
	h := NewHandler(&fakePipeline{}, fakeModels{}, nil, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	h := NewHandler(&fakePipeline{}, fakeModels{}, nil, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message": "  "}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var envelope httputil.ErrorEnvelope
	json.Unmarshal(rec.Body.Bytes(), &envelope)
	if envelope.Error.Code != types.CodeInvalidPayload {
		t.Errorf("code = %s, want INVALID_PAYLOAD", envelope.Error.Code)
	}
}

func TestPipelineErrorStatusMapping(t *testing.T) {
	pipeline := &fakePipeline{result: types.Failure(types.NewError(types.CodeModelUnavailable, "no models"))}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var result types.ExecutionResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Success || result.Error.Code != types.CodeModelUnavailable {
		t.Errorf("result = %+v", result)
	}
}

func TestWebhookSourceFromPath(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, nil)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	body := strings.NewReader(`{"event": "push", "text": "new commit on main"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/github", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.got.Type != types.RequestTypeWebhook || pipeline.got.Source != "github" {
		t.Errorf("pipeline saw %+v", pipeline.got)
	}
}

func TestRunTask(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, nil)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	body := strings.NewReader(`{"task_key": "daily_digest", "instructions": "summarize"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/run", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if pipeline.got.Type != types.RequestTypeSystemTask || pipeline.got.Source != "daily_digest" {
		t.Errorf("pipeline saw %+v", pipeline.got)
	}
}

func TestAgentAction(t *testing.T) {
	pipeline := &fakePipeline{result: types.SuccessResult(nil, nil)}
	h := NewHandler(pipeline, fakeModels{}, nil, nil, "test")

	body := strings.NewReader(`{"action": "send_email", "instruction": "email the report"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/agent/actions", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if pipeline.got.Type != types.RequestTypeAgentAction {
		t.Errorf("pipeline saw %+v", pipeline.got)
	}
}

func TestListModels(t *testing.T) {
	h := NewHandler(&fakePipeline{}, fakeModels{models: []types.ModelCandidate{
		{ModelID: "m1", Provider: "openai", Active: true},
		{ModelID: "m2", Provider: "anthropic", Active: true},
	}}, nil, nil, "test")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestListModelsCatalogError(t *testing.T) {
	h := NewHandler(&fakePipeline{}, fakeModels{err: errors.New("db down")}, nil, nil, "test")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHealthIncludesProviderSnapshot(t *testing.T) {
	health := router.NewHealthTracker(3, 0)
	health.RecordFailure("openai")
	h := NewHandler(&fakePipeline{}, fakeModels{}, nil, health, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/cosmo/v1/health", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status    string            `json:"status"`
		Version   string            `json:"version"`
		Providers map[string]string `json:"providers"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "healthy" || body.Version != "1.2.3" {
		t.Errorf("body = %+v", body)
	}
	if _, ok := body.Providers["openai"]; !ok {
		t.Errorf("providers = %v, want openai entry", body.Providers)
	}
}

func TestRefreshIntentCache(t *testing.T) {
	source := &fakeIntentSource{intents: []store.Intent{{IntentKey: "coding_help", Category: "coding"}}}
	cache := store.NewIntentCache(source, 0)
	h := NewHandler(&fakePipeline{}, fakeModels{}, cache, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/cosmo/v1/admin/intent-cache/refresh", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshIntentCacheSourceDown(t *testing.T) {
	cache := store.NewIntentCache(&fakeIntentSource{err: errors.New("db down")}, 0)
	h := NewHandler(&fakePipeline{}, fakeModels{}, cache, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/cosmo/v1/admin/intent-cache/refresh", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
