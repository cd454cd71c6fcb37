package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialKind selects the active authentication strategy. Exactly one
// variant is chosen at construction and never changes for the lifetime of
// the client.
type credentialKind int

const (
	credentialUnset credentialKind = iota

	// credentialNone sends requests unauthenticated.
	credentialNone

	// credentialPassword performs a login RPC to obtain an access token.
	credentialPassword

	// credentialToken uses a caller-supplied access token directly. No login
	// is ever performed for this variant unless password credentials were
	// also supplied as a fallback for when the token is rejected.
	credentialToken
)

type credentials struct {
	kind            credentialKind
	email           string
	password        string
	userNamespaceID string
	accessToken     string
	explicitNoAuth  bool
}

// hasPassword reports whether a password login is possible, either as the
// active variant or as the fallback for a rejected provided token.
func (cr *credentials) hasPassword() bool {
	return cr.email != "" && cr.password != ""
}

// resolve selects the variant from whichever fields were supplied. A provided
// access token wins over password credentials; password credentials kept
// alongside a token serve as the re-login fallback.
func (cr *credentials) resolve() error {
	switch {
	case cr.accessToken != "":
		cr.kind = credentialToken
	case cr.hasPassword():
		cr.kind = credentialPassword
	case cr.explicitNoAuth:
		cr.kind = credentialNone
	default:
		return ErrNoCredentials
	}
	return nil
}

// tokenExpiryLeeway is how long before a token's exp claim the client treats
// it as stale, so a fresh login happens before the server starts rejecting it.
const tokenExpiryLeeway = 30 * time.Second

// tokenExpiry extracts the exp claim from a JWT access token without
// verifying its signature (the client has no key material; the claim is only
// a refresh hint). Returns the zero time when the token is not a JWT or
// carries no exp claim, which disables proactive refresh.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.Add(-tokenExpiryLeeway)
}
