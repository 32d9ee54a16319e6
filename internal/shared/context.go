package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id for audit trails.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext returns the acting user id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(actorContextKey{}).(int64); ok {
		return v
	}
	return 0
}
