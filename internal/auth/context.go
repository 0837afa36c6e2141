package auth

import "context"

type principalKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Role    Role
}

// Actor is the tag stamped on rows written on behalf of the principal.
func (p Principal) Actor() string {
	return "user:" + p.Subject
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ActorFromContext returns the actor tag of the caller, or "" when the request
// is unauthenticated.
func ActorFromContext(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.Actor()
}
