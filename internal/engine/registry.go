package engine

import (
	"context"
	"sort"
	"sync"

	"automation-service/internal/model"
)

// Handler executes one step of a workflow run. config is the step's stored
// configuration; runCtx is the accumulated run context: the trigger payload
// plus the outputs of previously executed steps, keyed by step order. The
// returned map is merged back into the run context so later steps can
// reference it.
//
// Handlers must honor ctx cancellation; the executor bounds each call with a
// per-step timeout.
type Handler interface {
	Execute(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, config, runCtx)
}

// Registry maps step types to their handlers. Handlers are registered once
// at process start; an unknown step type at run time is reported by the
// executor as a failed step, never a crash.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a step type to a handler, replacing any previous binding.
func (r *Registry) Register(stepType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stepType] = h
}

// Get returns the handler for a step type.
func (r *Registry) Get(stepType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stepType]
	return h, ok
}

// Has reports whether a step type is registered. The create API uses it to
// reject unknown step types at save time.
func (r *Registry) Has(stepType string) bool {
	_, ok := r.Get(stepType)
	return ok
}

// Types returns the registered step types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
