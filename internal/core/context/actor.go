// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"shajara/internal/core/id"
)

// ActorContext carries the authenticated caller's identity. The auth account
// is resolved to a profile once at the service boundary; domain code never
// re-derives identity mid-operation.
type ActorContext struct {
	// AccountID is the authentication identity (auth account row).
	AccountID id.ID

	// ProfileID is the tree profile linked to the account. May be nil when
	// the account has no profile yet (fails closed in the gateway).
	ProfileID *id.ID

	Email string
	Role  string
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context, or nil.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorProfileID returns the caller's profile id, or uuid.Nil when the
// request is unauthenticated or the account has no linked profile.
func GetActorProfileID(ctx context.Context) id.ID {
	if a := GetActor(ctx); a != nil && a.ProfileID != nil {
		return *a.ProfileID
	}
	return id.Nil()
}
