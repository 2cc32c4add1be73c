package stream

import (
	"context"
	"slices"
)

// ChangeFunc handles one entity change. Returning an error fails the batch.
type ChangeFunc func(ctx context.Context, change Change) error

// Registry holds the change handlers registered per kind.
type Registry struct {
	kinds  []string
	byKind map[string][]ChangeFunc
	any    []ChangeFunc
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:  []string{},
		byKind: make(map[string][]ChangeFunc),
	}
}

// Register adds a handler for changes to entities of kind.
// This should be called before the handler starts receiving events.
func (r *Registry) Register(kind string, fn ChangeFunc) {
	if _, ok := r.byKind[kind]; !ok {
		r.kinds = append(r.kinds, kind)
	}
	r.byKind[kind] = append(r.byKind[kind], fn)
}

// RegisterAny adds a handler for changes to entities of every kind.
func (r *Registry) RegisterAny(fn ChangeFunc) {
	r.any = append(r.any, fn)
}

// HandlersFor returns the handlers for kind followed by the catch-all handlers.
func (r *Registry) HandlersFor(kind string) []ChangeFunc {
	handlers := make([]ChangeFunc, 0, len(r.byKind[kind])+len(r.any))
	handlers = append(handlers, r.byKind[kind]...)
	return append(handlers, r.any...)
}

// Kinds returns the kinds with dedicated handlers, in registration order.
func (r *Registry) Kinds() []string {
	return slices.Clone(r.kinds)
}

// HasHandlers returns true if any handler would receive changes of kind.
func (r *Registry) HasHandlers(kind string) bool {
	return len(r.byKind[kind]) > 0 || len(r.any) > 0
}
