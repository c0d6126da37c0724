package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID returns ctx carrying the HTTP request id. Spans started from
// the returned context are tagged with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id carried by ctx, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogPrefix renders the request id as a log prefix such as "[req 1f3a] ", or ""
// outside a request.
func LogPrefix(ctx context.Context) string {
	if id := RequestID(ctx); id != "" {
		return "[req " + id + "] "
	}
	return ""
}
