package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// BatchRequest asks for a set of functions to run against a shared
// context. Sequential is the default; parallel fan-out is opt-in.
type BatchRequest struct {
	Functions []string
	Context   map[string]any
	Parallel  bool
}

// Executor runs selected functions. It executes what it is told and
// nothing more; deciding what to run is the selector's job.
type Executor struct {
	registry    *Registry
	callTimeout time.Duration
	maxParallel int
}

func New(registry *Registry, callTimeout time.Duration, maxParallel int) *Executor {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &Executor{registry: registry, callTimeout: callTimeout, maxParallel: maxParallel}
}

// ExecuteFunction runs one function. Unknown or unregistered keys fail
// before any execution logic runs; tool panics and errors become failed
// results, never propagated.
func (e *Executor) ExecuteFunction(ctx context.Context, key string, fnCtx map[string]any) types.FunctionExecutionResult {
	start := time.Now()

	tool, ok := e.registry.Get(key)
	if !ok {
		return types.FunctionExecutionResult{
			FunctionKey: key,
			Success:     false,
			Error:       fmt.Sprintf("function %q not found or disabled", key),
			Events:      []string{"error"},
			Elapsed:     time.Since(start),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	result, err := e.invoke(callCtx, tool, fnCtx)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("function execution failed", "function", key, "error", err, "elapsed_ms", elapsed.Milliseconds())
		return types.FunctionExecutionResult{
			FunctionKey: key,
			Success:     false,
			Error:       err.Error(),
			Events:      []string{"error"},
			Elapsed:     elapsed,
		}
	}

	return types.FunctionExecutionResult{
		FunctionKey: key,
		Success:     true,
		Result:      result,
		Events:      []string{"completed"},
		Elapsed:     elapsed,
	}
}

// invoke shields the executor from panicking tools.
func (e *Executor) invoke(ctx context.Context, tool Tool, fnCtx map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Key(), r)
		}
	}()
	return tool.Execute(ctx, fnCtx)
}

// ExecuteFunctions runs a batch. Sequential mode threads each successful
// result into the context seen by later functions; a failure is recorded
// and the batch continues. Parallel mode gives every function the same
// initial context snapshot and joins on all of them completing.
func (e *Executor) ExecuteFunctions(ctx context.Context, req BatchRequest) types.BatchExecutionResult {
	if req.Parallel {
		return e.executeParallel(ctx, req)
	}
	return e.executeSequential(ctx, req)
}

func (e *Executor) executeSequential(ctx context.Context, req BatchRequest) types.BatchExecutionResult {
	start := time.Now()
	fnCtx := cloneContext(req.Context)

	batch := types.BatchExecutionResult{}
	for _, key := range req.Functions {
		result := e.ExecuteFunction(ctx, key, fnCtx)
		batch.Results = append(batch.Results, result)
		if result.Success {
			// Later functions see earlier successes under their key.
			fnCtx[key] = result.Result
		} else {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %s", key, result.Error))
		}
	}

	batch.Context = fnCtx
	batch.Elapsed = time.Since(start)
	return batch
}

func (e *Executor) executeParallel(ctx context.Context, req BatchRequest) types.BatchExecutionResult {
	start := time.Now()

	results := make([]types.FunctionExecutionResult, len(req.Functions))
	var g errgroup.Group
	g.SetLimit(e.maxParallel)

	for i, key := range req.Functions {
		i, key := i, key
		// Each call gets its own snapshot; partial results never leak
		// between parallel siblings.
		snapshot := cloneContext(req.Context)
		g.Go(func() error {
			results[i] = e.ExecuteFunction(ctx, key, snapshot)
			return nil
		})
	}
	g.Wait()

	batch := types.BatchExecutionResult{Results: results, Context: cloneContext(req.Context)}
	for _, r := range results {
		if r.Success {
			batch.Context[r.FunctionKey] = r.Result
		} else {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %s", r.FunctionKey, r.Error))
		}
	}
	batch.Elapsed = time.Since(start)
	return batch
}

func cloneContext(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+4)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
