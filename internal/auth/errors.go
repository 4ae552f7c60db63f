package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedToken is returned when the credential is not a compact serialized JWT.
	ErrMalformedToken = errors.New("malformed token")

	// ErrMissingClaim is returned when a claim needed before verification (iss) is absent.
	ErrMissingClaim = errors.New("missing claim")

	// ErrMissingRequiredClaim is returned when a required claim is absent from a verified token.
	ErrMissingRequiredClaim = errors.New("missing required claim")

	// ErrInvalidClaim is returned when a registered claim has the wrong type.
	ErrInvalidClaim = errors.New("invalid claim")

	// ErrInvalidSignature is returned when no published key verifies the token signature.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTokenExpired is returned when exp lies in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotYetValid is returned when nbf lies in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrInvalidAudience is returned when aud shares no value with the accepted audiences.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrUnknownIssuer is returned for issuers outside the configured allow-list.
	ErrUnknownIssuer = errors.New("unknown issuer")

	// ErrKeyFetch is returned when discovery or the JWKS request fails. Nothing is cached.
	ErrKeyFetch = errors.New("failed to fetch signing keys")

	// ErrSessionRevoked is returned when the token's session was ended by back-channel logout.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrScopeNotAuthorized is returned when scope enforcement is on and no API scope matches.
	ErrScopeNotAuthorized = errors.New("not authorized for this API")

	// ErrMalformedHeader is returned when the Authorization header is not "<scheme> <credential>".
	ErrMalformedHeader = errors.New("malformed authorization header")

	// ErrVerificationFailed is the opaque error shown to clients for every token verification failure.
	ErrVerificationFailed = errors.New("token verification failed")
)

// ValidationError is a token validation failure.
// Kind is one of the sentinel errors above and is matched by errors.Is.
type ValidationError struct {
	Kind   error
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}

	return e.Kind.Error() + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func validationError(kind error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AuthError is the error the Authenticator returns.
// Error() only reveals Kind, the underlying cause is kept for logs and errors.Is.
type AuthError struct {
	Kind  error
	Cause error
}

func (e *AuthError) Error() string {
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause.
func (e *AuthError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}
