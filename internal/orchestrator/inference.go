package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cosmohq/cosmo-core/internal/router/adapters"
	"github.com/cosmohq/cosmo-core/internal/types"
)

type inferenceOutcome struct {
	routing      types.RoutingResult
	model        types.ModelCandidate
	content      string
	finishReason string
	tokens       int
	fallbackUsed bool
}

// infer performs the actual provider call for the routed model. On
// failure it retries exactly once against the fallback model; a second
// failure surfaces MODEL_UNAVAILABLE. The circuit breaker is updated
// around every attempt.
func (o *Orchestrator) infer(ctx context.Context, req types.NormalizedRequest,
	routed types.RoutingResult, candidates []types.ModelCandidate,
	batch types.BatchExecutionResult) (inferenceOutcome, *types.CosmoError) {

	primary, ok := findModel(candidates, routed.ModelID)
	if !ok {
		return inferenceOutcome{}, types.NewError(types.CodeModelUnavailable,
			fmt.Sprintf("routed model %s not in catalog", routed.ModelID))
	}

	messages := buildMessages(req, batch)

	resp, err := o.callProvider(ctx, primary, messages)
	if err == nil {
		return inferenceOutcome{
			routing:      routed,
			model:        primary,
			content:      resp.Content,
			finishReason: resp.FinishReason,
			tokens:       resp.TotalTokens,
		}, nil
	}
	slog.Warn("primary inference failed", "trace_id", req.TraceID,
		"model", primary.ModelID, "provider", primary.Provider, "error", err)

	fallback, ok := o.router.FallbackModel(candidates, routed)
	if !ok {
		return inferenceOutcome{}, types.WrapError(types.CodeModelUnavailable,
			"primary model failed and no fallback model is available", err)
	}

	resp, err = o.callProvider(ctx, fallback, messages)
	if err != nil {
		return inferenceOutcome{}, types.WrapError(types.CodeModelUnavailable,
			fmt.Sprintf("primary %s and fallback %s both failed", primary.ModelID, fallback.ModelID), err)
	}

	routing := routed
	routing.ModelID = fallback.ModelID
	routing.Provider = fallback.Provider
	routing.Reasoning = routed.Reasoning + "; fell back to " + fallback.ModelID
	return inferenceOutcome{
		routing:      routing,
		model:        fallback,
		content:      resp.Content,
		finishReason: resp.FinishReason,
		tokens:       resp.TotalTokens,
		fallbackUsed: true,
	}, nil
}

func (o *Orchestrator) callProvider(ctx context.Context, model types.ModelCandidate, messages []types.Message) (*adapters.ChatResponse, error) {
	adapter, cerr := o.providers.Require(model.Provider)
	if cerr != nil {
		return nil, cerr
	}

	health := o.router.Health()
	if !health.IsAvailable(model.Provider) {
		return nil, fmt.Errorf("provider %s circuit open", model.Provider)
	}

	callCtx := ctx
	if o.pipeline.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.pipeline.InferenceTimeout)
		defer cancel()
	}

	resp, err := adapters.Complete(callCtx, adapter, &adapters.ChatRequest{
		Model:    model.ModelID,
		Messages: messages,
	})
	if err != nil {
		health.RecordFailure(model.Provider)
		return nil, err
	}
	health.RecordSuccess(model.Provider)
	return resp, nil
}

// buildMessages assembles the conversation sent to the provider:
// history, then a system message summarizing useful function results,
// then the user prompt.
func buildMessages(req types.NormalizedRequest, batch types.BatchExecutionResult) []types.Message {
	messages := make([]types.Message, 0, len(req.Context.History)+2)
	messages = append(messages, req.Context.History...)

	if summary := summarizeFunctionResults(batch); summary != "" {
		messages = append(messages, types.Message{Role: "system", Content: summary})
	}
	messages = append(messages, types.Message{Role: "user", Content: req.Prompt})
	return messages
}

// summarizeFunctionResults turns successful data-fetch results into a
// system message the model can ground its answer on. Passthrough and
// stub markers carry no information worth forwarding.
func summarizeFunctionResults(batch types.BatchExecutionResult) string {
	var b strings.Builder
	for _, r := range batch.Results {
		if !r.Success || isMarkerResult(r.Result) {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Context gathered for this request:\n")
		}
		fmt.Fprintf(&b, "- %s: %v\n", r.FunctionKey, r.Result)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func isMarkerResult(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	status, _ := m["status"].(string)
	return status == "not_implemented" || status == "handled_by_orchestrator"
}

func findModel(candidates []types.ModelCandidate, id string) (types.ModelCandidate, bool) {
	for _, c := range candidates {
		if c.ModelID == id {
			return c, true
		}
	}
	return types.ModelCandidate{}, false
}
