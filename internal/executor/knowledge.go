package executor

import (
	"context"

	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// DocumentSearcher is the slice of the store the knowledge tool needs.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, workspaceID, query string, limit int) ([]store.Document, error)
}

// KnowledgeTool answers knowledge_base lookups with full-text search
// over the workspace document store.
type KnowledgeTool struct {
	searcher DocumentSearcher
	limit    int
}

func NewKnowledgeTool(searcher DocumentSearcher) *KnowledgeTool {
	return &KnowledgeTool{searcher: searcher, limit: 5}
}

func (t *KnowledgeTool) Key() string { return "knowledge_base" }

func (t *KnowledgeTool) Execute(ctx context.Context, fnCtx map[string]any) (any, error) {
	query, _ := fnCtx["query"].(string)
	if query == "" {
		query, _ = fnCtx["prompt"].(string)
	}
	if query == "" {
		return nil, types.NewError(types.CodeInvalidPayload, "knowledge_base: no query in request context")
	}
	workspaceID, _ := fnCtx["workspace_id"].(string)

	docs, err := t.searcher.SearchDocuments(ctx, workspaceID, query, t.limit)
	if err != nil {
		return nil, types.WrapError(types.CodeFunctionFailed, "knowledge_base: document search failed", err)
	}

	return map[string]any{
		"query":     query,
		"documents": docs,
	}, nil
}
