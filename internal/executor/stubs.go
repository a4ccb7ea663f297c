package executor

import "context"

// StubTool stands in for integrations that resolve and schedule but do
// not yet execute (web_search, gmail, calendar). Callers get a stable
// not_implemented payload instead of a hard failure so the batch and
// the final response can still describe what was requested.
type StubTool struct {
	key string
}

func NewStubTool(key string) *StubTool { return &StubTool{key: key} }

func (t *StubTool) Key() string { return t.key }

func (t *StubTool) Execute(_ context.Context, fnCtx map[string]any) (any, error) {
	out := map[string]any{
		"status":   "not_implemented",
		"function": t.key,
	}
	for _, param := range []string{"recipient", "date", "query"} {
		if v, ok := fnCtx[param]; ok {
			out[param] = v
		}
	}
	return out, nil
}

// PassthroughTool marks functions the orchestrator fulfils itself
// (chat, image_generation): the model call happens after routing, so
// executing the function just records that it is pending.
type PassthroughTool struct {
	key string
}

func NewPassthroughTool(key string) *PassthroughTool { return &PassthroughTool{key: key} }

func (t *PassthroughTool) Key() string { return t.key }

func (t *PassthroughTool) Execute(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{
		"status":   "handled_by_orchestrator",
		"function": t.key,
	}, nil
}
