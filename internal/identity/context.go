// Package identity carries the acting user through request contexts and
// answers what each role is allowed to do.
package identity

import "context"

type ctxKey string

const actorKey ctxKey = "babyspa.actor"

// Role is a staff or portal role.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleReception Role = "RECEPTION"
	RoleTherapist Role = "THERAPIST"
	RoleClient    Role = "CLIENT"
)

// Actor identifies who is performing an operation.
type Actor struct {
	UserID string
	Role   Role
	// ParentID is set for portal clients acting on their own bookings.
	ParentID string
}

// WithActor stores the actor in context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	a, ok := val.(Actor)
	return a, ok && a.UserID != ""
}
