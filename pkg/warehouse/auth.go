package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/txn2/analytics-gateway/pkg/identity"
)

// ErrAuthNotConfigured is returned when a request carries no delegated
// session token and no static connection name is configured. Indicates
// deployment misconfiguration; never retried.
var ErrAuthNotConfigured = errors.New(
	"warehouse authentication requires either a delegated session token or a configured connection name")

// ErrAuthBackendMissing is returned when a delegated session token is
// present but no token exchanger is installed. Distinct from
// ErrAuthNotConfigured so operators can tell "not configured" apart
// from "cannot be configured here".
var ErrAuthBackendMissing = errors.New(
	"delegated warehouse auth requires a token exchanger, none is installed")

// AccessToken is a short-lived warehouse credential obtained by
// exchanging a delegated session token.
type AccessToken struct {
	// Authenticator names the warehouse auth scheme, e.g. "oauth".
	Authenticator string

	// Token is the opaque credential.
	Token string
}

// TokenExchanger exchanges a platform session token for short-lived
// warehouse credentials. Deployments without delegated auth leave it
// nil.
type TokenExchanger interface {
	Exchange(ctx context.Context, sessionToken string) (AccessToken, error)
}

// Auth is the resolved authentication choice for one connection
// attempt. Exactly one of Token or ConnectionName is set.
type Auth struct {
	Token          *AccessToken
	ConnectionName string
}

// resolveAuth picks the auth mode for a new connection. Re-evaluated on
// every connection: credentials are never cached, only live handles.
func (d *Discovery) resolveAuth(ctx context.Context, id identity.Identity) (Auth, error) {
	if id.SessionToken != "" {
		if d.exchanger == nil {
			return Auth{}, ErrAuthBackendMissing
		}
		tok, err := d.exchanger.Exchange(ctx, id.SessionToken)
		if err != nil {
			return Auth{}, fmt.Errorf("exchanging session token: %w", err)
		}
		return Auth{Token: &tok}, nil
	}
	if d.cfg.ConnectionName != "" {
		return Auth{ConnectionName: d.cfg.ConnectionName}, nil
	}
	return Auth{}, ErrAuthNotConfigured
}
