package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/executor"
	"github.com/cosmohq/cosmo-core/internal/intent"
	"github.com/cosmohq/cosmo-core/internal/response"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/router/adapters"
	"github.com/cosmohq/cosmo-core/internal/selector"
	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

type fakeIntents struct{ intents []store.Intent }

func (f fakeIntents) Get(context.Context) ([]store.Intent, store.LoadStatus) {
	return f.intents, store.StatusLoaded
}

type fakeFunctions struct{ fns []types.FunctionCandidate }

func (f fakeFunctions) LoadFunctions(context.Context) ([]types.FunctionCandidate, error) {
	return f.fns, nil
}

type fakeCatalog struct {
	models []types.ModelCandidate
	err    error
}

func (f fakeCatalog) LoadModels(context.Context) ([]types.ModelCandidate, error) {
	return f.models, f.err
}

type fakeAudit struct {
	mu   sync.Mutex
	rows []store.DebugLog
}

func (f *fakeAudit) WriteDebugLog(_ context.Context, row store.DebugLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

type recordingRecorder struct {
	mu       sync.Mutex
	stages   []string
	requests []string
}

func (r *recordingRecorder) RecordStage(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recordingRecorder) RecordRequest(surface, category, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, surface+"/"+category+"/"+status)
}

func (r *recordingRecorder) RecordRouting(types.CostTier, bool) {}

func (r *recordingRecorder) RecordUsage(int, float64) {}

func (r *recordingRecorder) RecordFunctionExecution(string, bool) {}

func chatCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "` + content + `"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`))
	}))
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}))
}

type testEnv struct {
	orch     *Orchestrator
	audit    *fakeAudit
	recorder *recordingRecorder
}

func newTestEnv(t *testing.T, providers map[string]string, models []types.ModelCandidate, catalogErr error) *testEnv {
	t.Helper()

	registry := router.NewRegistry()
	for name, baseURL := range providers {
		registry.Register(name, adapters.NewOpenAIAdapter(name, config.ProviderConfig{
			BaseURL: baseURL,
			APIKey:  "test-key",
		}, &http.Client{Timeout: time.Second}))
	}

	health := router.NewHealthTracker(5, time.Second)
	rtr := router.New(router.NewClassifier(registry), health)

	analyzer := intent.NewAnalyzer(fakeIntents{intents: []store.Intent{
		{IntentKey: "coding_help", Category: "coding", Keywords: []string{"debug", "function", "code"}, RequiredFunctions: []string{"chat"}, Priority: 10},
	}}, nil)

	sel := selector.New(fakeFunctions{fns: []types.FunctionCandidate{
		{FunctionKey: "chat", Name: "Chat", Description: "conversational response", Tags: []string{"chat"}, Enabled: true},
	}})

	tools := executor.NewToolRegistry()
	tools.Register(executor.NewPassthroughTool("chat"))
	exec := executor.New(tools, time.Second, 4)

	audit := &fakeAudit{}
	recorder := &recordingRecorder{}

	cfg := &config.RoutingConfig{DefaultProvider: "primary", CostWeight: 10}
	cfg.Normalize()

	orch := New(Deps{
		Analyzer:  analyzer,
		Selector:  sel,
		Executor:  exec,
		Router:    rtr,
		Providers: registry,
		Processor: response.NewProcessor(audit),
		Catalog:   fakeCatalog{models: models, err: catalogErr},
		Routing:   func() *config.RoutingConfig { return cfg },
		Pipeline:  config.DefaultConfig().Pipeline,
		Recorder:  recorder,
	})
	return &testEnv{orch: orch, audit: audit, recorder: recorder}
}

func chatRequest(prompt string) types.NormalizedRequest {
	return types.NormalizedRequest{
		TraceID:    "tr-test",
		Type:       types.RequestTypeChat,
		Source:     "api",
		Prompt:     prompt,
		ReceivedAt: time.Now(),
	}
}

func TestOrchestrateChatPipeline(t *testing.T) {
	srv := chatCompletionServer(t, "The bug is on line 12.")
	defer srv.Close()

	env := newTestEnv(t, map[string]string{"primary": srv.URL}, []types.ModelCandidate{
		{ModelID: "m-cheap", Provider: "primary", IsFree: true, BestFor: "general", Active: true},
	}, nil)

	result := env.orch.Orchestrate(context.Background(), chatRequest("please debug this function"))
	if !result.Success {
		t.Fatalf("pipeline failed: %+v", result.Error)
	}

	data := result.Data.(map[string]any)
	if data["content"] != "The bug is on line 12." {
		t.Errorf("content = %v", data["content"])
	}
	if result.Debug == nil || result.Debug.ModelUsed != "m-cheap" {
		t.Fatalf("debug = %+v", result.Debug)
	}
	if result.Debug.TokensUsed != 8 {
		t.Errorf("TokensUsed = %d, want provider-reported 8", result.Debug.TokensUsed)
	}
	if result.Debug.FallbackUsed {
		t.Error("no fallback should have been used")
	}
	if result.Debug.IntentCategory != "coding" {
		t.Errorf("IntentCategory = %q, want coding", result.Debug.IntentCategory)
	}
	if _, ok := result.Debug.TimingsMs["total"]; !ok {
		t.Error("timings missing total")
	}

	if len(env.audit.rows) != 1 || !env.audit.rows[0].Success {
		t.Errorf("audit rows = %+v", env.audit.rows)
	}

	wantStages := []Stage{StageIntentAnalyzed, StageFunctionsSelected, StageFunctionsExecuted, StageModelRouted, StageResponseBuilt}
	if len(env.recorder.stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", env.recorder.stages, wantStages)
	}
	for i, s := range wantStages {
		if env.recorder.stages[i] != string(s) {
			t.Errorf("stage[%d] = %s, want %s", i, env.recorder.stages[i], s)
		}
	}
}

func TestOrchestrateCatalogFailureStopsPipeline(t *testing.T) {
	env := newTestEnv(t, nil, nil, errors.New("db gone"))

	result := env.orch.Orchestrate(context.Background(), chatRequest("hello"))
	if result.Success {
		t.Fatal("expected failure envelope")
	}
	if result.Error.Code != types.CodeModelUnavailable {
		t.Errorf("code = %s, want MODEL_UNAVAILABLE", result.Error.Code)
	}
	if len(env.audit.rows) != 1 || env.audit.rows[0].Success {
		t.Errorf("audit rows = %+v", env.audit.rows)
	}
	if len(env.recorder.requests) != 1 || !strings.HasSuffix(env.recorder.requests[0], "/error") {
		t.Errorf("requests = %v", env.recorder.requests)
	}
}

func TestOrchestrateEmptyCatalogIsModelUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	result := env.orch.Orchestrate(context.Background(), chatRequest("hello"))
	if result.Success || result.Error.Code != types.CodeModelUnavailable {
		t.Fatalf("result = %+v", result)
	}
}

func TestOrchestrateFallbackRetry(t *testing.T) {
	broken := failingServer(t)
	defer broken.Close()
	working := chatCompletionServer(t, "answered by fallback")
	defer working.Close()

	env := newTestEnv(t, map[string]string{"primary": broken.URL, "backup": working.URL}, []types.ModelCandidate{
		{ModelID: "m-primary", Provider: "primary", IsFree: true, BestFor: "general", Active: true},
		{ModelID: "m-backup", Provider: "backup", PromptCostPerTok: 0.001, BestFor: "general", Active: true},
	}, nil)

	result := env.orch.Orchestrate(context.Background(), chatRequest("hello"))
	if !result.Success {
		t.Fatalf("pipeline failed: %+v", result.Error)
	}
	if !result.Debug.FallbackUsed {
		t.Error("FallbackUsed should be set")
	}
	if result.Debug.ModelUsed != "m-backup" {
		t.Errorf("ModelUsed = %q, want m-backup", result.Debug.ModelUsed)
	}
	data := result.Data.(map[string]any)
	if data["content"] != "answered by fallback" {
		t.Errorf("content = %v", data["content"])
	}
}

func TestOrchestratePrimaryAndFallbackBothFail(t *testing.T) {
	broken := failingServer(t)
	defer broken.Close()

	env := newTestEnv(t, map[string]string{"primary": broken.URL}, []types.ModelCandidate{
		{ModelID: "m-only", Provider: "primary", IsFree: true, BestFor: "general", Active: true},
	}, nil)

	result := env.orch.Orchestrate(context.Background(), chatRequest("hello"))
	if result.Success {
		t.Fatal("expected failure when primary fails with no fallback")
	}
	if result.Error.Code != types.CodeModelUnavailable {
		t.Errorf("code = %s, want MODEL_UNAVAILABLE", result.Error.Code)
	}
}

func TestOrchestrateExactlyOneRetry(t *testing.T) {
	var primaryCalls, backupCalls int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupCalls++
		http.Error(w, "also down", http.StatusBadGateway)
	}))
	defer backup.Close()

	env := newTestEnv(t, map[string]string{"primary": primary.URL, "backup": backup.URL}, []types.ModelCandidate{
		{ModelID: "m-primary", Provider: "primary", IsFree: true, BestFor: "general", Active: true},
		{ModelID: "m-backup", Provider: "backup", PromptCostPerTok: 0.001, BestFor: "general", Active: true},
	}, nil)

	result := env.orch.Orchestrate(context.Background(), chatRequest("hello"))
	if result.Success {
		t.Fatal("expected failure when both attempts fail")
	}
	if primaryCalls != 1 || backupCalls != 1 {
		t.Errorf("calls = primary %d, backup %d; want exactly one each", primaryCalls, backupCalls)
	}
}

func TestOrchestrateImageIntent(t *testing.T) {
	// No classifier provider reachable for the default provider name, so
	// image selection falls back to the first image candidate.
	env := newTestEnv(t, nil, []types.ModelCandidate{
		{ModelID: "sd-xl", Provider: "imagegen", BestFor: "image", Active: true},
		{ModelID: "m-chat", Provider: "primary", BestFor: "general", Active: true},
	}, nil)

	req := chatRequest("draw a lighthouse at dusk")
	req.ImageIntent = true

	result := env.orch.Orchestrate(context.Background(), req)
	if !result.Success {
		t.Fatalf("pipeline failed: %+v", result.Error)
	}
	data := result.Data.(map[string]any)
	if data["status"] != "image_request_routed" || data["image_model"] != "sd-xl" {
		t.Errorf("data = %v", data)
	}
}

func TestOrchestrateAgentActionUsesEnhancedAnalysis(t *testing.T) {
	srv := chatCompletionServer(t, "done")
	defer srv.Close()

	env := newTestEnv(t, map[string]string{"primary": srv.URL}, []types.ModelCandidate{
		{ModelID: "m-cheap", Provider: "primary", IsFree: true, BestFor: "general", Active: true},
	}, nil)

	req := types.NormalizedRequest{
		TraceID:    "tr-agent",
		Type:       types.RequestTypeAgentAction,
		Source:     "summarize",
		Prompt:     "debug the function in \"billing.go\"",
		ReceivedAt: time.Now(),
	}
	result := env.orch.Orchestrate(context.Background(), req)
	if !result.Success {
		t.Fatalf("pipeline failed: %+v", result.Error)
	}
	if result.Debug.IntentCategory != "coding" {
		t.Errorf("IntentCategory = %q, want coding", result.Debug.IntentCategory)
	}
}
