package sync

import (
	"context"
	"encoding/json"

	"github.com/booksync/quickbooks-connector/internal/domain"
)

// EntityHandler maps one remote entity kind into its local table.
// Registering a handler is what makes a kind "critical": unregistered
// kinds are logged to the event trail but never synchronized.
type EntityHandler interface {
	Kind() domain.EntityKind

	// Upsert maps the canonical remote document and writes it, keyed by
	// remote_id, so that reprocessing the same entity converges instead
	// of duplicating rows.
	Upsert(ctx context.Context, remoteID string, entity json.RawMessage) error
}

type Registry struct {
	handlers map[domain.EntityKind]EntityHandler
}

func NewRegistry(handlers ...EntityHandler) *Registry {
	r := &Registry{
		handlers: make(map[domain.EntityKind]EntityHandler),
	}

	for _, handler := range handlers {
		r.handlers[handler.Kind()] = handler
	}

	return r
}

func (r *Registry) Lookup(kind domain.EntityKind) (EntityHandler, bool) {
	handler, found := r.handlers[kind]
	return handler, found
}

func (r *Registry) Kinds() []domain.EntityKind {
	kinds := make([]domain.EntityKind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}
