package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// Intent is one row of the intent registry.
type Intent struct {
	IntentKey         string
	Category          string
	Keywords          []string
	RequiredFunctions []string
	ContextNeeds      []string
	Priority          int
}

// Document is one knowledge-base search hit.
type Document struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Rank        float64 `json:"rank"`
}

// Store is the pgx-backed data access layer for the intent registry,
// function registry, model catalog, knowledge base, and audit log.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadIntents reads the full intent registry, highest priority first.
func (s *Store) LoadIntents(ctx context.Context) ([]Intent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT intent_key, category, keywords, required_functions, context_needs, priority
		FROM intent_registry
		WHERE enabled
		ORDER BY priority DESC, intent_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query intent_registry: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		var in Intent
		if err := rows.Scan(&in.IntentKey, &in.Category, &in.Keywords, &in.RequiredFunctions, &in.ContextNeeds, &in.Priority); err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}
		intents = append(intents, in)
	}
	return intents, rows.Err()
}

// LoadFunctions reads enabled function candidates from the registry.
func (s *Store) LoadFunctions(ctx context.Context) ([]types.FunctionCandidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT function_key, name, description, tags, input_schema, output_schema, enabled
		FROM function_registry
		WHERE enabled
		ORDER BY function_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query function_registry: %w", err)
	}
	defer rows.Close()

	var fns []types.FunctionCandidate
	for rows.Next() {
		var fn types.FunctionCandidate
		if err := rows.Scan(&fn.FunctionKey, &fn.Name, &fn.Description, &fn.Tags, &fn.InputSchema, &fn.OutputSchema, &fn.Enabled); err != nil {
			return nil, fmt.Errorf("scan function row: %w", err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// LoadModels reads active models from the catalog.
func (s *Store) LoadModels(ctx context.Context) ([]types.ModelCandidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT model_id, provider, prompt_cost_per_tok, completion_cost_per_tok, is_free, best_for, active
		FROM model_catalog
		WHERE active
		ORDER BY model_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query model_catalog: %w", err)
	}
	defer rows.Close()

	var models []types.ModelCandidate
	for rows.Next() {
		var m types.ModelCandidate
		if err := rows.Scan(&m.ModelID, &m.Provider, &m.PromptCostPerTok, &m.CompletionCostPerTok, &m.IsFree, &m.BestFor, &m.Active); err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// SearchDocuments runs a full-text search against the workspace's
// knowledge base.
func (s *Store) SearchDocuments(ctx context.Context, workspaceID, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, workspace_id, title, content,
		       ts_rank(search_vector, plainto_tsquery('english', $2)) AS rank
		FROM documents
		WHERE workspace_id = $1
		  AND search_vector @@ plainto_tsquery('english', $2)
		ORDER BY rank DESC
		LIMIT $3
	`, workspaceID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.Title, &d.Content, &d.Rank); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DebugLog is the audit projection of a completed request.
type DebugLog struct {
	TraceID      string
	RequestType  string
	Source       string
	Category     string
	ModelUsed    string
	Provider     string
	Tier         string
	TokensUsed   int
	CostUSD      float64
	Functions    []string
	Success      bool
	ErrorCode    string
	DurationMs   int64
	CompletedAt  time.Time
	FallbackUsed bool
}

// WriteDebugLog persists the audit row for a completed request.
func (s *Store) WriteDebugLog(ctx context.Context, row DebugLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cosmo_debug_logs
			(trace_id, request_type, source, category, model_used, provider, cost_tier,
			 tokens_used, cost_usd, functions_invoked, success, error_code, duration_ms,
			 fallback_used, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, row.TraceID, row.RequestType, row.Source, row.Category, row.ModelUsed, row.Provider,
		row.Tier, row.TokensUsed, row.CostUSD, row.Functions, row.Success, row.ErrorCode,
		row.DurationMs, row.FallbackUsed, row.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert cosmo_debug_logs: %w", err)
	}
	return nil
}
