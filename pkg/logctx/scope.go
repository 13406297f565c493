// Package logctx provides the request-scoped log context store for the ctxlog core.
// Each unit of work (HTTP request, gRPC call, bus delivery, websocket message) owns
// one isolated Scope carried through context.Context, so fields set anywhere in the
// call chain are visible to every subsequent log statement without being repeated.
//
// Example usage:
//
//	ctx = logctx.Run(ctx, func(ctx context.Context) {
//	    logctx.Set(ctx, "request_id", "r1")
//	    handle(ctx) // every log call in here sees request_id
//	})
package logctx

import (
	"context"
	"sync"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const scopeContextKey = contextKey("ctxlog.scope")

// Reserved scope keys. They are used internally by the logging core and are
// never surfaced to callers as ordinary fields.
const (
	// ReservedContextKey is used for internal message-prefix labels only.
	ReservedContextKey = "context"

	// CachedCallerKey memoizes the caller resolver result for a scope.
	CachedCallerKey = "_cachedCaller"
)

// Scope is a mutable key/value bag scoped to a single unit of work.
// It is safe for concurrent use; many goroutines belonging to the same unit
// of work may read and write it, but a Scope is never shared across units.
type Scope struct {
	mu     sync.RWMutex
	fields map[string]any
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{fields: make(map[string]any)}
}

// Set stores a field in the scope. A nil value deletes the field.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.fields, key)
		return
	}
	s.fields[key] = value
}

// Get returns a field value, or nil if the key is absent.
func (s *Scope) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[key]
}

// GetString returns a field as a string, or "" if absent or not a string.
func (s *Scope) GetString(key string) string {
	v, _ := s.Get(key).(string)
	return v
}

// All returns a snapshot copy of the scope with reserved keys stripped.
// Callers may mutate the returned map freely without affecting the scope.
func (s *Scope) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		if k == ReservedContextKey || k == CachedCallerKey {
			continue
		}
		out[k] = v
	}
	return out
}

// SetAll stores every field from the given map. Reserved keys are ignored.
func (s *Scope) SetAll(fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range fields {
		if k == ReservedContextKey || k == CachedCallerKey {
			continue
		}
		if v == nil {
			delete(s.fields, k)
			continue
		}
		s.fields[k] = v
	}
}

// WithScope returns a context carrying the given scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, s)
}

// FromContext extracts the scope from the context.
// Returns nil when the context carries no scope.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeContextKey).(*Scope)
	return s
}

// Run executes fn with a fresh, isolated scope. Fields set inside fn are not
// visible to any outer scope, and the scope is unreachable once fn returns.
func Run(ctx context.Context, fn func(ctx context.Context)) {
	fn(WithScope(ctx, NewScope()))
}

// RunValue executes fn with a fresh, isolated scope and returns its result.
// It carries the same isolation guarantees as Run.
func RunValue[T any](ctx context.Context, fn func(ctx context.Context) T) T {
	var out T
	Run(ctx, func(ctx context.Context) {
		out = fn(ctx)
	})
	return out
}

// Set stores a field in the current scope. It is a no-op when the context
// carries no scope, so library code may call it unconditionally.
func Set(ctx context.Context, key string, value any) {
	if s := FromContext(ctx); s != nil {
		s.Set(key, value)
	}
}

// Get returns a field from the current scope, or nil without a scope.
func Get(ctx context.Context, key string) any {
	if s := FromContext(ctx); s != nil {
		return s.Get(key)
	}
	return nil
}

// GetString returns a field from the current scope as a string.
func GetString(ctx context.Context, key string) string {
	if s := FromContext(ctx); s != nil {
		return s.GetString(key)
	}
	return ""
}

// All returns a snapshot of the current scope's fields, or an empty map
// when the context carries no scope.
func All(ctx context.Context) map[string]any {
	if s := FromContext(ctx); s != nil {
		return s.All()
	}
	return map[string]any{}
}

// SetAll stores every field from the given map in the current scope.
func SetAll(ctx context.Context, fields map[string]any) {
	if s := FromContext(ctx); s != nil {
		s.SetAll(fields)
	}
}
