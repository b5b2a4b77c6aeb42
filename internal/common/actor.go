package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const actorKey ctxKey = "actor"

// Actor identifies who is performing a request. Session issuance and token
// verification live outside this service; the edge layer forwards the resolved
// identity in headers that ActorFromHeaders trusts.
type Actor struct {
	ID   string
	Role string
}

// Actor roles recognised by the core.
const (
	RoleCustomer = "customer"
	RoleHotel    = "hotel"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

// WithActor stores the acting identity on the provided context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom extracts the acting identity from the context if present.
func ActorFrom(ctx context.Context) (Actor, bool) {
	v := ctx.Value(actorKey)
	if v == nil {
		return Actor{}, false
	}
	a, ok := v.(Actor)
	return a, ok && a.ID != ""
}

// ActorFromHeaders is middleware that lifts the forwarded identity headers
// into the request context.
func ActorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
		role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
		if id != "" {
			r = r.WithContext(WithActor(r.Context(), Actor{ID: id, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose actor does not carry the wanted role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
				return
			}
			if actor.Role != role {
				JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
