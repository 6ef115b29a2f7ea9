package domain

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerKey
)

// WithRequestID attaches a request id for log and audit correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCaller attaches the authenticated caller address.
func WithCaller(ctx context.Context, addr Address) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}

// CallerFrom returns the authenticated caller stored in ctx.
func CallerFrom(ctx context.Context) (Address, bool) {
	addr, ok := ctx.Value(callerKey).(Address)
	return addr, ok
}
