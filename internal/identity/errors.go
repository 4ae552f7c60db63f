package identity

import "errors"

var (
	// ErrInvalidPayload is returned when the claims carry no subject.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidUsername is returned when a username was not derived from a UUID.
	ErrInvalidUsername = errors.New("not an UUID based username")
	// ErrNoFreeUsername is returned when every suffixed variant of a username is taken.
	ErrNoFreeUsername = errors.New("no free username")
	// ErrDBNil is returned when the resolver is created without a database.
	ErrDBNil = errors.New("database is nil")
)
