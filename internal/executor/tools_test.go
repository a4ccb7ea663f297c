package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

func TestMapsToolSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"display_name":"Golden Gate Park, San Francisco","lat":"37.77","lon":"-122.45","type":"park"}]`))
	}))
	defer srv.Close()

	tool := NewMapsTool(srv.URL, time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"location": "Golden Gate Park"})
	if err != nil {
		t.Fatalf("maps tool failed: %v", err)
	}
	if gotQuery != "Golden Gate Park" {
		t.Errorf("query = %q, want Golden Gate Park", gotQuery)
	}

	m := out.(map[string]any)
	places := m["places"].([]placeResult)
	if len(places) != 1 || places[0].Type != "park" {
		t.Errorf("places = %+v, want one park", places)
	}
}

func TestMapsToolUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tool := NewMapsTool(srv.URL, time.Second)
	_, err := tool.Execute(context.Background(), map[string]any{"location": "Oslo"})
	if err == nil {
		t.Fatal("expected error on upstream failure")
	}
	var cerr *types.CosmoError
	if !errors.As(err, &cerr) || cerr.Code != types.CodeFunctionFailed {
		t.Errorf("error = %v, want FUNCTION_FAILED", err)
	}
}

func TestMapsToolMissingLocation(t *testing.T) {
	tool := NewMapsTool("http://unused.invalid", time.Second)
	_, err := tool.Execute(context.Background(), map[string]any{})
	var cerr *types.CosmoError
	if !errors.As(err, &cerr) || cerr.Code != types.CodeInvalidPayload {
		t.Errorf("error = %v, want INVALID_PAYLOAD", err)
	}
}

type fakeSearcher struct {
	docs []store.Document
	err  error

	gotWorkspace string
	gotQuery     string
}

func (f *fakeSearcher) SearchDocuments(_ context.Context, workspaceID, query string, _ int) ([]store.Document, error) {
	f.gotWorkspace = workspaceID
	f.gotQuery = query
	return f.docs, f.err
}

func TestKnowledgeToolSearch(t *testing.T) {
	searcher := &fakeSearcher{docs: []store.Document{{ID: "d1", Title: "Onboarding"}}}
	tool := NewKnowledgeTool(searcher)

	out, err := tool.Execute(context.Background(), map[string]any{
		"query":        "onboarding checklist",
		"workspace_id": "ws-42",
	})
	if err != nil {
		t.Fatalf("knowledge tool failed: %v", err)
	}
	if searcher.gotWorkspace != "ws-42" || searcher.gotQuery != "onboarding checklist" {
		t.Errorf("searcher saw (%q, %q)", searcher.gotWorkspace, searcher.gotQuery)
	}
	docs := out.(map[string]any)["documents"].([]store.Document)
	if len(docs) != 1 || docs[0].ID != "d1" {
		t.Errorf("documents = %+v, want d1", docs)
	}
}

func TestKnowledgeToolFallsBackToPrompt(t *testing.T) {
	searcher := &fakeSearcher{}
	tool := NewKnowledgeTool(searcher)

	if _, err := tool.Execute(context.Background(), map[string]any{"prompt": "what is our PTO policy"}); err != nil {
		t.Fatalf("knowledge tool failed: %v", err)
	}
	if searcher.gotQuery != "what is our PTO policy" {
		t.Errorf("query = %q, want prompt fallback", searcher.gotQuery)
	}
}

func TestKnowledgeToolSearchError(t *testing.T) {
	tool := NewKnowledgeTool(&fakeSearcher{err: errors.New("db down")})
	_, err := tool.Execute(context.Background(), map[string]any{"query": "x"})
	var cerr *types.CosmoError
	if !errors.As(err, &cerr) || cerr.Code != types.CodeFunctionFailed {
		t.Errorf("error = %v, want FUNCTION_FAILED", err)
	}
}
