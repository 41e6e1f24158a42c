// Package auth resolves inbound credentials: Authorization headers carrying
// raw API keys on the api surface, and the signed session cookie on the web
// surface.
package auth

import (
	"context"
	"strings"

	"github.com/faatca/cue/internal/keystore"
)

// Authenticator resolves bearer credentials against the key store.
type Authenticator struct {
	store keystore.Store
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(store keystore.Store) *Authenticator {
	return &Authenticator{store: store}
}

// ResolveHeader converts an Authorization header value into a key record.
// Accepted schemes are "bearer" and "apikey", case-insensitive. A missing or
// malformed header, or an unknown credential, yields (nil, nil): the request
// is simply unauthenticated, not an error.
func (a *Authenticator) ResolveHeader(ctx context.Context, authorization string) (*keystore.Key, error) {
	if authorization == "" {
		return nil, nil
	}
	parts := strings.Fields(authorization)
	if len(parts) != 2 {
		return nil, nil
	}
	switch strings.ToLower(parts[0]) {
	case "bearer", "apikey":
	default:
		return nil, nil
	}
	return a.store.GetKey(ctx, parts[1])
}
