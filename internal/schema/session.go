package schema

import (
	"context"
	"log/slog"
	"sync"
)

// Resolver reads the field names the remote note type currently has.
type Resolver interface {
	ModelFieldNames(ctx context.Context, model string) ([]string, error)
}

// Session holds the resolved field list for one note type. It is owned by a
// single orchestrator and refreshed once per sync pass; between refreshes the
// list is read without revalidation.
type Session struct {
	model    string
	resolver Resolver
	logger   *slog.Logger

	mu     sync.RWMutex
	fields Fields
}

// NewSession creates a Session for model. resolver may be nil, in which case
// the default field list is always used.
func NewSession(model string, resolver Resolver) *Session {
	return &Session{
		model:    model,
		resolver: resolver,
		logger:   slog.Default().With("component", "schema"),
	}
}

// Refresh re-reads the remote field names and reports whether the list
// changed, so callers can regenerate templates. A note type with fewer
// fields than the fixed layout resolves to DefaultFields. When the resolver
// fails, the previous list is kept and no change is reported; before any
// list has been resolved, DefaultFields is returned without being stored.
func (s *Session) Refresh(ctx context.Context) (Fields, bool) {
	next := DefaultFields()
	if s.resolver != nil {
		names, err := s.resolver.ModelFieldNames(ctx, s.model)
		if err != nil {
			s.logger.Debug("field names unavailable, keeping current list", "model", s.model, "error", err)
			s.mu.RLock()
			defer s.mu.RUnlock()
			if s.fields != nil {
				return s.fields, false
			}
			return next, false
		}
		if len(names) < len(next) {
			s.logger.Debug("note type has too few fields, using defaults", "model", s.model, "fields", names)
		} else {
			next = Fields(names)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.fields.Equal(next)
	s.fields = next
	return next, changed
}

// Fields returns the last resolved list, resolving it first if needed.
func (s *Session) Fields(ctx context.Context) Fields {
	s.mu.RLock()
	f := s.fields
	s.mu.RUnlock()
	if f != nil {
		return f
	}
	f, _ = s.Refresh(ctx)
	return f
}
