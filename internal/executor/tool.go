package executor

import (
	"context"
	"sync"
)

// Tool is one discrete capability COSMO can invoke. Implementations are
// registered by key; the executor never hard-codes dispatch.
type Tool interface {
	Key() string
	Execute(ctx context.Context, fnCtx map[string]any) (any, error)
}

// Registry maps function keys to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Key()] = tool
}

func (r *Registry) Get(key string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[key]
	return t, ok
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	return keys
}
