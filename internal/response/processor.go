package response

import (
	"context"
	"log/slog"
	"time"

	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// charsPerToken is the heuristic divisor for token estimation. It is
// deliberately not a real tokenizer: cost reporting tolerates a rough
// estimate, and providers that report exact usage override it.
const charsPerToken = 4

// AuditWriter persists the per-request audit row.
type AuditWriter interface {
	WriteDebugLog(ctx context.Context, row store.DebugLog) error
}

// Processor assembles the final ExecutionResult: token and cost
// estimates, debug metadata, and the audit row.
type Processor struct {
	audit AuditWriter
}

func NewProcessor(audit AuditWriter) *Processor {
	return &Processor{audit: audit}
}

// EstimateTokens approximates a token count from character length.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// Cost prices an exchange against the selected model's per-token rates.
// Free models always cost zero.
func Cost(model types.ModelCandidate, promptTokens, completionTokens int) float64 {
	if model.IsFree {
		return 0
	}
	return float64(promptTokens)*model.PromptCostPerTok + float64(completionTokens)*model.CompletionCostPerTok
}

// Input carries everything the processor needs to build the response.
type Input struct {
	Request    types.NormalizedRequest
	Routing    types.RoutingResult
	Model      types.ModelCandidate
	Completion string
	// ReportedTokens is the provider's exact usage count, 0 when the
	// provider did not report usage.
	ReportedTokens int
	Functions      []string
	FallbackUsed   bool
	TimingsMs      map[string]int64
	IntentCategory string
	Data           any
}

// Build computes estimates, assembles the debug bag, writes the audit
// row, and returns the success envelope. An audit write failure is
// logged and swallowed: the caller already has a good response.
func (p *Processor) Build(ctx context.Context, in Input) types.ExecutionResult {
	promptTokens := EstimateTokens(in.Request.Prompt)
	completionTokens := EstimateTokens(in.Completion)
	tokens := in.ReportedTokens
	if tokens == 0 {
		tokens = promptTokens + completionTokens
	}
	cost := Cost(in.Model, promptTokens, completionTokens)

	debug := &types.DebugData{
		TokensUsed:     tokens,
		CostUSD:        cost,
		ModelUsed:      in.Routing.ModelID,
		Provider:       in.Routing.Provider,
		Tier:           in.Routing.Tier,
		Category:       in.Routing.Category,
		Functions:      in.Functions,
		FallbackUsed:   in.FallbackUsed,
		TimingsMs:      in.TimingsMs,
		IntentCategory: in.IntentCategory,
	}

	p.writeAudit(ctx, in, tokens, cost, true, "")
	return types.SuccessResult(in.Data, debug)
}

// BuildFailure records the audit row for a failed request and returns
// the error envelope.
func (p *Processor) BuildFailure(ctx context.Context, in Input, cerr *types.CosmoError) types.ExecutionResult {
	p.writeAudit(ctx, in, 0, 0, false, string(cerr.Code))
	return types.Failure(cerr)
}

func (p *Processor) writeAudit(ctx context.Context, in Input, tokens int, cost float64, success bool, errCode string) {
	if p.audit == nil {
		return
	}
	var durationMs int64
	if !in.Request.ReceivedAt.IsZero() {
		durationMs = time.Since(in.Request.ReceivedAt).Milliseconds()
	}
	row := store.DebugLog{
		TraceID:      in.Request.TraceID,
		RequestType:  string(in.Request.Type),
		Source:       in.Request.Source,
		Category:     in.Routing.Category,
		ModelUsed:    in.Routing.ModelID,
		Provider:     in.Routing.Provider,
		Tier:         string(in.Routing.Tier),
		TokensUsed:   tokens,
		CostUSD:      cost,
		Functions:    in.Functions,
		Success:      success,
		ErrorCode:    errCode,
		DurationMs:   durationMs,
		CompletedAt:  time.Now().UTC(),
		FallbackUsed: in.FallbackUsed,
	}
	if err := p.audit.WriteDebugLog(ctx, row); err != nil {
		slog.Error("audit log write failed", "trace_id", in.Request.TraceID, "error", err)
	}
}
