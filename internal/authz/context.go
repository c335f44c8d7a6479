package authz

import "context"

type contextKey struct{}

// ContextWithCaller stores the authenticated caller id on the context.
func ContextWithCaller(ctx context.Context, callerID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, callerID)
}

// CallerFromContext returns the caller id, or zero when absent.
func CallerFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKey{}).(int64)
	return id
}
