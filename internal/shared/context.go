package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting principal in context. The actor is
// supplied by the upstream auth gateway; this service does not own sessions.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting principal from context.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
