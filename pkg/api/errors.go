package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoServer is returned by New when no server URL was supplied.
	ErrNoServer = errors.New("no server configured")

	// ErrNoCredentials is returned by New when neither an access token nor
	// email/password credentials were supplied and WithNoAuth was not set.
	ErrNoCredentials = errors.New("no credentials supplied (use WithNoAuth for unauthenticated access)")

	// ErrTokenExpired is returned when a caller-supplied access token has been
	// rejected by the server and no password credentials exist to fall back on.
	// A bare provided token cannot be refreshed.
	ErrTokenExpired = errors.New("provided access token expired and cannot be refreshed")

	// ErrUnexpectedEnd is returned by a Stream whose underlying response ended
	// before the server sent its {"success":true} terminator. Data already
	// delivered before this error is valid but the result set may be truncated.
	ErrUnexpectedEnd = errors.New("stream ended without success envelope")
)

// ErrorCode is a server-reported JSON-RPC error code. The client gives special
// treatment to the two auth codes below; every other value is opaque and
// passed through to the caller unmodified.
type ErrorCode string

const (
	CodeTokenExpired   ErrorCode = "token_expired"
	CodeBadAccessToken ErrorCode = "bad_access_token"
)

// IsAuth reports whether the code signals that the current access token must
// be discarded and re-derived.
func (c ErrorCode) IsAuth() bool {
	return c == CodeTokenExpired || c == CodeBadAccessToken
}

// Error is an application error reported by the server, either in the error
// field of a JSON-RPC response or as an error envelope on a stream.
type Error struct {
	Code    ErrorCode
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %s", e.Code)
	}
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// IsAuthError reports whether err is a server-reported auth error
// (token_expired or bad_access_token).
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code.IsAuth()
}
