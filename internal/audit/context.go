package audit

import "context"

type traceKey struct{}

// WithTrace returns a context carrying the request trace ID. Components
// that emit events pick it up so one request's events share a trace.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceFrom returns the trace ID carried by ctx, or "" if none.
func TraceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
