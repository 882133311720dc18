// Package identity derives the principal a request is attributed to.
// The principal partitions every per-user cache in the gateway, so this
// package is the single place identity is extracted; all other
// packages route through FromContext.
package identity

import (
	"context"
	"net/http"
)

// Anonymous is the principal used when a request carries no identity.
const Anonymous = "anonymous"

// Header names consumed by FromRequest. The session token header is set
// by the hosting platform when delegated warehouse auth is available.
const (
	UserIDHeader       = "X-User-Id"
	SessionTokenHeader = "Posit-Connect-User-Session-Token"
)

// Identity identifies the principal behind a request.
type Identity struct {
	// Principal is the cache-partitioning user identifier.
	Principal string

	// SessionToken is the delegated auth session token, if present.
	// Empty for requests without delegated credentials.
	SessionToken string
}

// contextKey is a private type for context keys.
type contextKey int

const identityContextKey contextKey = iota

// FromRequest extracts the request identity from headers, defaulting
// the principal to Anonymous.
func FromRequest(r *http.Request) Identity {
	id := Identity{
		Principal:    r.Header.Get(UserIDHeader),
		SessionToken: r.Header.Get(SessionTokenHeader),
	}
	if id.Principal == "" {
		id.Principal = Anonymous
	}
	return id
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext retrieves the identity from the context. Contexts without
// an identity resolve to the anonymous principal.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey).(Identity); ok {
		return id
	}
	return Identity{Principal: Anonymous}
}
