package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTool records what it saw and returns canned results.
type fakeTool struct {
	key    string
	result any
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls []map[string]any
}

func (t *fakeTool) Key() string { return t.key }

func (t *fakeTool) Execute(ctx context.Context, fnCtx map[string]any) (any, error) {
	t.mu.Lock()
	snapshot := make(map[string]any, len(fnCtx))
	for k, v := range fnCtx {
		snapshot[k] = v
	}
	t.calls = append(t.calls, snapshot)
	t.mu.Unlock()

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

func (t *fakeTool) lastCall() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.calls) == 0 {
		return nil
	}
	return t.calls[len(t.calls)-1]
}

func newTestExecutor(tools ...Tool) *Executor {
	reg := NewToolRegistry()
	for _, tool := range tools {
		reg.Register(tool)
	}
	return New(reg, time.Second, 4)
}

func TestExecuteFunctionUnknownKey(t *testing.T) {
	e := newTestExecutor()

	result := e.ExecuteFunction(context.Background(), "nonexistent", nil)
	if result.Success {
		t.Fatal("expected failure for unknown function")
	}
	if !strings.Contains(result.Error, "not found or disabled") {
		t.Errorf("error = %q, want mention of not found or disabled", result.Error)
	}
	if result.FunctionKey != "nonexistent" {
		t.Errorf("FunctionKey = %q, want nonexistent", result.FunctionKey)
	}
}

func TestExecuteFunctionSuccess(t *testing.T) {
	tool := &fakeTool{key: "maps", result: map[string]any{"places": 3}}
	e := newTestExecutor(tool)

	result := e.ExecuteFunction(context.Background(), "maps", map[string]any{"location": "Oslo"})
	if !result.Success {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if got := tool.lastCall()["location"]; got != "Oslo" {
		t.Errorf("tool saw location %v, want Oslo", got)
	}
	if len(result.Events) != 1 || result.Events[0] != "completed" {
		t.Errorf("Events = %v, want [completed]", result.Events)
	}
}

func TestExecuteFunctionTimeout(t *testing.T) {
	tool := &fakeTool{key: "slow", result: "late", delay: 5 * time.Second}
	reg := NewToolRegistry()
	reg.Register(tool)
	e := New(reg, 20*time.Millisecond, 4)

	result := e.ExecuteFunction(context.Background(), "slow", nil)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Error, "deadline") {
		t.Errorf("error = %q, want deadline exceeded", result.Error)
	}
}

type panickyTool struct{}

func (panickyTool) Key() string { return "boom" }
func (panickyTool) Execute(context.Context, map[string]any) (any, error) {
	panic("tool exploded")
}

func TestExecuteFunctionRecoversPanic(t *testing.T) {
	e := newTestExecutor(panickyTool{})

	result := e.ExecuteFunction(context.Background(), "boom", nil)
	if result.Success {
		t.Fatal("expected failure from panicking tool")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Errorf("error = %q, want panic mention", result.Error)
	}
}

func TestSequentialThreadsContext(t *testing.T) {
	first := &fakeTool{key: "maps", result: map[string]any{"lat": "59.9"}}
	second := &fakeTool{key: "knowledge_base", result: "docs"}
	e := newTestExecutor(first, second)

	batch := e.ExecuteFunctions(context.Background(), BatchRequest{
		Functions: []string{"maps", "knowledge_base"},
		Context:   map[string]any{"query": "parks"},
	})

	if len(batch.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(batch.Results))
	}
	if len(batch.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", batch.Errors)
	}
	// The second function sees the first one's result under its key.
	if _, ok := second.lastCall()["maps"]; !ok {
		t.Error("knowledge_base did not see maps result in its context")
	}
	if _, ok := batch.Context["maps"]; !ok {
		t.Error("final context missing maps result")
	}
	if _, ok := batch.Context["knowledge_base"]; !ok {
		t.Error("final context missing knowledge_base result")
	}
}

func TestSequentialContinuesPastFailure(t *testing.T) {
	failing := &fakeTool{key: "web_search", err: errors.New("upstream 503")}
	succeeding := &fakeTool{key: "chat", result: "ok"}
	e := newTestExecutor(failing, succeeding)

	batch := e.ExecuteFunctions(context.Background(), BatchRequest{
		Functions: []string{"web_search", "chat"},
	})

	if len(batch.Results) != 2 {
		t.Fatalf("got %d results, want 2: batch must continue past a failure", len(batch.Results))
	}
	if batch.Results[0].Success {
		t.Error("web_search should have failed")
	}
	if !batch.Results[1].Success {
		t.Errorf("chat should have succeeded: %s", batch.Results[1].Error)
	}
	if len(batch.Errors) != 1 || !strings.Contains(batch.Errors[0], "web_search") {
		t.Errorf("Errors = %v, want one web_search entry", batch.Errors)
	}
	// Failures are recorded, never merged into the threaded context.
	if _, ok := succeeding.lastCall()["web_search"]; ok {
		t.Error("chat saw failed web_search result in its context")
	}
	if _, ok := batch.Context["web_search"]; ok {
		t.Error("final context contains failed function result")
	}
}

func TestParallelSharesInitialSnapshot(t *testing.T) {
	a := &fakeTool{key: "maps", result: "a", delay: 10 * time.Millisecond}
	b := &fakeTool{key: "web_search", result: "b", delay: 10 * time.Millisecond}
	e := newTestExecutor(a, b)

	initial := map[string]any{"query": "coffee"}
	batch := e.ExecuteFunctions(context.Background(), BatchRequest{
		Functions: []string{"maps", "web_search"},
		Context:   initial,
		Parallel:  true,
	})

	if len(batch.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(batch.Results))
	}
	// Neither sibling sees the other's result: both got the initial snapshot.
	if _, ok := a.lastCall()["web_search"]; ok {
		t.Error("maps saw sibling result in parallel mode")
	}
	if _, ok := b.lastCall()["maps"]; ok {
		t.Error("web_search saw sibling result in parallel mode")
	}
	if a.lastCall()["query"] != "coffee" || b.lastCall()["query"] != "coffee" {
		t.Error("parallel calls did not receive the initial context")
	}
	// Results are keyed by position, matching the requested order.
	if batch.Results[0].FunctionKey != "maps" || batch.Results[1].FunctionKey != "web_search" {
		t.Errorf("result order = %s,%s; want maps,web_search",
			batch.Results[0].FunctionKey, batch.Results[1].FunctionKey)
	}
	// Caller's map is never mutated.
	if len(initial) != 1 {
		t.Errorf("initial context mutated: %v", initial)
	}
	if _, ok := batch.Context["maps"]; !ok {
		t.Error("final context missing maps result")
	}
}

func TestParallelRecordsFailures(t *testing.T) {
	good := &fakeTool{key: "maps", result: "ok"}
	bad := &fakeTool{key: "gmail", err: errors.New("token expired")}
	e := newTestExecutor(good, bad)

	batch := e.ExecuteFunctions(context.Background(), BatchRequest{
		Functions: []string{"maps", "gmail"},
		Parallel:  true,
	})

	if len(batch.Errors) != 1 || !strings.Contains(batch.Errors[0], "gmail") {
		t.Errorf("Errors = %v, want one gmail entry", batch.Errors)
	}
	if _, ok := batch.Context["gmail"]; ok {
		t.Error("failed parallel result merged into context")
	}
	if _, ok := batch.Context["maps"]; !ok {
		t.Error("successful parallel result missing from context")
	}
}

func TestRegistryKeys(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(&fakeTool{key: "maps"})
	reg.Register(NewStubTool("gmail"))

	keys := reg.Keys()
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if _, ok := reg.Get("gmail"); !ok {
		t.Error("gmail not registered")
	}
	if _, ok := reg.Get("calendar"); ok {
		t.Error("calendar should not be registered")
	}
}

func TestStubToolEchoesParameters(t *testing.T) {
	tool := NewStubTool("calendar")
	out, err := tool.Execute(context.Background(), map[string]any{"date": "2026-09-01", "unrelated": true})
	if err != nil {
		t.Fatalf("stub returned error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("stub result type %T, want map", out)
	}
	if m["status"] != "not_implemented" {
		t.Errorf("status = %v, want not_implemented", m["status"])
	}
	if m["date"] != "2026-09-01" {
		t.Errorf("date = %v, want echoed", m["date"])
	}
	if _, ok := m["unrelated"]; ok {
		t.Error("stub echoed a non-parameter key")
	}
}
