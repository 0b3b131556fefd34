package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated operator id in context.
// Authentication itself happens upstream; the engine only carries the identity
// for audit fields.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the operator id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
