// Package auth carries how an operator request was authorized.
package auth

import "context"

type (
	contextKey struct{}
	slotKey    struct{}
)

type Method string

const (
	// MethodBearer means the request presented the shared cron secret.
	MethodBearer Method = "bearer"
	// MethodOpen means no secret is required outside production.
	MethodOpen Method = "open"
)

type Caller struct {
	Method   Method
	RemoteIP string
}

// WithCaller attaches c to ctx and fills the slot installed by Track, if any.
func WithCaller(ctx context.Context, c Caller) context.Context {
	if slot, ok := ctx.Value(slotKey{}).(*Caller); ok {
		*slot = c
	}
	return context.WithValue(ctx, contextKey{}, c)
}

// Track returns a context whose descendants report their Caller back through
// the returned pointer. Outer middleware uses it to see how an inner guard
// authorized the request.
func Track(ctx context.Context) (context.Context, *Caller) {
	slot := new(Caller)
	return context.WithValue(ctx, slotKey{}, slot), slot
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// MethodOf returns the authorization method, or "" for an unauthorized context.
func MethodOf(ctx context.Context) Method {
	c, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return c.Method
}

func IsBearer(ctx context.Context) bool {
	return MethodOf(ctx) == MethodBearer
}
