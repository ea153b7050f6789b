// Package kit carries request-scoped values (request ID, trace ID, actor)
// through context so that HTTP handlers, the SQL trace driver and the
// requirement audit trail can correlate entries.
package kit

import "context"

type contextKey string

const (
	ActorKey     contextKey = "rfpx_actor"
	RequestIDKey contextKey = "rfpx_request_id"
	TraceIDKey   contextKey = "rfpx_trace_id"
)

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor returns the authenticated reviewer identity, or "system" when
// the request carries none (auth is a stub for now).
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey).(string); ok && v != "" {
		return v
	}
	return "system"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}
