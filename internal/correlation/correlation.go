// Package correlation carries the per-task correlation identifier and the
// ambient request fields that enrich every log record. The binding lives on
// a context.Context, so each goroutine sees exactly the ids it was handed
// and nothing leaks between concurrent tasks.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	idKey     contextKey = "correlation.id"
	fieldsKey contextKey = "correlation.fields"
)

// IDPrefix namespaces generated ids so they are recognizable in log output.
const IDPrefix = "corr-"

// Fields holds the ambient identity captured at a task boundary.
// All fields are optional; empty values are omitted from log records.
type Fields struct {
	UserID        string
	SessionID     string
	RequestPath   string
	RequestMethod string
	RemoteIP      string
	Worker        bool
}

// Generate returns a new collision-improbable correlation id.
// The random part is a UUIDv4, which carries 122 bits of entropy.
func Generate() string {
	return IDPrefix + uuid.New().String()
}

// WithID returns a context bound to the given correlation id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// FromContext returns the correlation id bound to ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey).(string)
	return id, ok && id != ""
}

// EnsureID returns ctx with a correlation id bound, generating one when
// the context has none, along with the resolved id.
func EnsureID(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := Generate()
	return WithID(ctx, id), id
}

// WithFields returns a context carrying the ambient request fields.
func WithFields(ctx context.Context, f Fields) context.Context {
	return context.WithValue(ctx, fieldsKey, f)
}

// FieldsFromContext returns the ambient fields bound to ctx, if any.
func FieldsFromContext(ctx context.Context) (Fields, bool) {
	f, ok := ctx.Value(fieldsKey).(Fields)
	return f, ok
}

// Do runs fn with id bound for its dynamic extent. The caller's context is
// never mutated, so the previous binding is intact after fn returns or
// panics; a panic propagates unchanged.
func Do(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return fn(WithID(ctx, id))
}
