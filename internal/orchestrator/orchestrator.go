package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/executor"
	"github.com/cosmohq/cosmo-core/internal/intent"
	"github.com/cosmohq/cosmo-core/internal/response"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/selector"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// Stage is a pipeline state. Stages advance in strict order; ERROR is
// terminal and reachable from any of them.
type Stage string

const (
	StageReceived          Stage = "RECEIVED"
	StageIntentAnalyzed    Stage = "INTENT_ANALYZED"
	StageFunctionsSelected Stage = "FUNCTIONS_SELECTED"
	StageFunctionsExecuted Stage = "FUNCTIONS_EXECUTED"
	StageModelRouted       Stage = "MODEL_ROUTED"
	StageResponseBuilt     Stage = "RESPONSE_BUILT"
	StageComplete          Stage = "COMPLETE"
	StageError             Stage = "ERROR"
)

// ModelCatalog loads routable model candidates.
type ModelCatalog interface {
	LoadModels(ctx context.Context) ([]types.ModelCandidate, error)
}

// Recorder receives pipeline telemetry. Implementations must be safe
// for concurrent use.
type Recorder interface {
	RecordStage(stage string, elapsed time.Duration)
	RecordRequest(surface, category, status string)
	RecordRouting(tier types.CostTier, fallbackUsed bool)
	RecordUsage(tokens int, costUSD float64)
	RecordFunctionExecution(function string, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(string, time.Duration) {}

func (nopRecorder) RecordRequest(string, string, string) {}

func (nopRecorder) RecordRouting(types.CostTier, bool) {}

func (nopRecorder) RecordUsage(int, float64) {}

func (nopRecorder) RecordFunctionExecution(string, bool) {}

// Orchestrator coordinates the pipeline for all four trigger surfaces.
type Orchestrator struct {
	analyzer  *intent.Analyzer
	selector  *selector.Selector
	executor  *executor.Executor
	router    *router.Router
	providers *router.Registry
	processor *response.Processor
	catalog   ModelCatalog
	routing   func() *config.RoutingConfig
	pipeline  config.PipelineConfig
	recorder  Recorder
}

type Deps struct {
	Analyzer  *intent.Analyzer
	Selector  *selector.Selector
	Executor  *executor.Executor
	Router    *router.Router
	Providers *router.Registry
	Processor *response.Processor
	Catalog   ModelCatalog
	Routing   func() *config.RoutingConfig
	Pipeline  config.PipelineConfig
	Recorder  Recorder
}

func New(deps Deps) *Orchestrator {
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Orchestrator{
		analyzer:  deps.Analyzer,
		selector:  deps.Selector,
		executor:  deps.Executor,
		router:    deps.Router,
		providers: deps.Providers,
		processor: deps.Processor,
		catalog:   deps.Catalog,
		routing:   deps.Routing,
		pipeline:  deps.Pipeline,
		recorder:  rec,
	}
}

// Orchestrate runs one request through the full pipeline. It always
// returns an envelope; failures surface as the structured error half
// and stop the pipeline at the failing stage.
func (o *Orchestrator) Orchestrate(ctx context.Context, req types.NormalizedRequest) types.ExecutionResult {
	start := time.Now()
	timings := map[string]int64{}
	log := slog.With("trace_id", req.TraceID, "request_type", string(req.Type), "source", req.Source)
	log.Info("request received", "stage", string(StageReceived))

	cfg := o.routing()

	// Stage: intent analysis. Agent and system paths need structured
	// actions, the rest get the basic analysis.
	stageStart := time.Now()
	var analysis types.EnhancedIntentAnalysis
	if req.Type == types.RequestTypeAgentAction || req.Type == types.RequestTypeSystemTask {
		analysis = o.analyzer.AnalyzeEnhanced(ctx, req.Prompt, cfg, req.Context)
	} else {
		analysis = types.EnhancedIntentAnalysis{IntentAnalysis: o.analyzer.Analyze(ctx, req.Prompt, cfg)}
	}
	o.observeStage(StageIntentAnalyzed, stageStart, timings, "intent")
	log.Info("intent analyzed", "stage", string(StageIntentAnalyzed),
		"category", analysis.Category, "confidence", analysis.Confidence, "ai_assisted", analysis.AIAssisted)

	// Stage: function selection.
	stageStart = time.Now()
	selection := o.selector.Select(ctx, analysis.IntentAnalysis)
	o.observeStage(StageFunctionsSelected, stageStart, timings, "selection")
	log.Info("functions selected", "stage", string(StageFunctionsSelected),
		"functions", selection.ExecutionOrder)

	// Stage: function execution.
	stageStart = time.Now()
	batch := o.executor.ExecuteFunctions(ctx, executor.BatchRequest{
		Functions: selection.ExecutionOrder,
		Context:   functionContext(req, analysis),
		Parallel:  req.Parallel,
	})
	o.observeStage(StageFunctionsExecuted, stageStart, timings, "execution")
	for _, fr := range batch.Results {
		o.recorder.RecordFunctionExecution(fr.FunctionKey, fr.Success)
	}
	if len(batch.Errors) > 0 {
		log.Warn("function batch had failures", "stage", string(StageFunctionsExecuted), "errors", batch.Errors)
	}

	// Stage: model routing.
	stageStart = time.Now()
	candidates, err := o.catalog.LoadModels(ctx)
	if err != nil {
		return o.fail(ctx, log, req, analysis, selection, timings, start,
			types.WrapError(types.CodeModelUnavailable, "model catalog unavailable", err))
	}

	if req.ImageIntent {
		return o.orchestrateImage(ctx, log, req, cfg, analysis, selection, candidates, timings, start, stageStart)
	}

	routed, cerr := o.router.SelectModel(ctx, req.Prompt, cfg, candidates)
	if cerr != nil {
		return o.fail(ctx, log, req, analysis, selection, timings, start, cerr)
	}
	o.observeStage(StageModelRouted, stageStart, timings, "routing")
	log.Info("model routed", "stage", string(StageModelRouted),
		"model", routed.ModelID, "provider", routed.Provider, "tier", string(routed.Tier))

	// Stage: inference + response assembly.
	stageStart = time.Now()
	inf, cerr := o.infer(ctx, req, routed, candidates, batch)
	if cerr != nil {
		return o.fail(ctx, log, req, analysis, selection, timings, start, cerr)
	}
	o.observeStage(StageResponseBuilt, stageStart, timings, "inference")
	timings["total"] = time.Since(start).Milliseconds()

	result := o.processor.Build(ctx, response.Input{
		Request:        req,
		Routing:        inf.routing,
		Model:          inf.model,
		Completion:     inf.content,
		ReportedTokens: inf.tokens,
		Functions:      selection.ExecutionOrder,
		FallbackUsed:   inf.fallbackUsed,
		TimingsMs:      timings,
		IntentCategory: analysis.Category,
		Data: map[string]any{
			"content":          inf.content,
			"finish_reason":    inf.finishReason,
			"function_results": batch.Results,
		},
	})

	o.recorder.RecordRouting(inf.routing.Tier, inf.fallbackUsed)
	if result.Debug != nil {
		o.recorder.RecordUsage(result.Debug.TokensUsed, result.Debug.CostUSD)
	}
	o.recorder.RecordRequest(string(req.Type), analysis.Category, "success")
	log.Info("request complete", "stage", string(StageComplete),
		"duration_ms", timings["total"], "fallback_used", inf.fallbackUsed)
	return result
}

// orchestrateImage handles image-generation requests: the router picks
// the image model and the envelope hands it to the image subsystem;
// no chat inference happens here.
func (o *Orchestrator) orchestrateImage(ctx context.Context, log *slog.Logger, req types.NormalizedRequest,
	cfg *config.RoutingConfig, analysis types.EnhancedIntentAnalysis, selection types.FunctionSelection,
	candidates []types.ModelCandidate, timings map[string]int64, start, stageStart time.Time) types.ExecutionResult {

	model, err := o.router.SelectImageModel(ctx, req.Prompt, cfg, imageCandidates(candidates))
	if err != nil {
		return o.fail(ctx, log, req, analysis, selection, timings, start,
			types.WrapError(types.CodeModelUnavailable, "image model selection failed", err))
	}
	o.observeStage(StageModelRouted, stageStart, timings, "routing")
	timings["total"] = time.Since(start).Milliseconds()

	routing := types.RoutingResult{
		ModelID:          model.ModelID,
		Provider:         model.Provider,
		Category:         "image",
		Reasoning:        "image model selected from catalog",
		Tier:             types.TierBalanced,
		ModelsConsidered: len(candidates),
	}
	result := o.processor.Build(ctx, response.Input{
		Request:        req,
		Routing:        routing,
		Model:          model,
		Functions:      selection.ExecutionOrder,
		TimingsMs:      timings,
		IntentCategory: analysis.Category,
		Data: map[string]any{
			"status":      "image_request_routed",
			"image_model": model.ModelID,
			"provider":    model.Provider,
		},
	})
	o.recorder.RecordRequest(string(req.Type), "image", "success")
	log.Info("request complete", "stage", string(StageComplete), "image_model", model.ModelID)
	return result
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, req types.NormalizedRequest,
	analysis types.EnhancedIntentAnalysis, selection types.FunctionSelection,
	timings map[string]int64, start time.Time, cerr *types.CosmoError) types.ExecutionResult {

	timings["total"] = time.Since(start).Milliseconds()
	log.Error("pipeline failed", "stage", string(StageError), "code", string(cerr.Code), "error", cerr.Message)
	o.recorder.RecordRequest(string(req.Type), analysis.Category, "error")
	return o.processor.BuildFailure(ctx, response.Input{
		Request:        req,
		Functions:      selection.ExecutionOrder,
		TimingsMs:      timings,
		IntentCategory: analysis.Category,
	}, cerr)
}

func (o *Orchestrator) observeStage(stage Stage, start time.Time, timings map[string]int64, key string) {
	elapsed := time.Since(start)
	timings[key] = elapsed.Milliseconds()
	o.recorder.RecordStage(string(stage), elapsed)
}

// functionContext seeds the executor context from the request and, for
// enhanced paths, the resolved action parameters.
func functionContext(req types.NormalizedRequest, analysis types.EnhancedIntentAnalysis) map[string]any {
	fnCtx := map[string]any{
		"prompt": req.Prompt,
	}
	if req.Context.WorkspaceID != "" {
		fnCtx["workspace_id"] = req.Context.WorkspaceID
	}
	if req.Context.UserID != "" {
		fnCtx["user_id"] = req.Context.UserID
	}
	for k, v := range req.Context.Extra {
		fnCtx[k] = v
	}
	for _, action := range analysis.Plan.Actions {
		for k, v := range action.Parameters {
			fnCtx[k] = v
		}
	}
	return fnCtx
}

func imageCandidates(candidates []types.ModelCandidate) []types.ModelCandidate {
	var out []types.ModelCandidate
	for _, c := range candidates {
		if c.BestFor == "image" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}
