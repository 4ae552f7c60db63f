package identity

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	usernamePrefix = "u-"
	usernameLength = 28
)

var usernameEncoding = base32.StdEncoding.WithPadding(base32.NoPadding) //nolint:gochecknoglobals

// UUIDToUsername derives the username of a token provisioned user:
// "u-" followed by the lowercase, unpadded base32 of the 16 UUID bytes.
func UUIDToUsername(id uuid.UUID) string {
	return usernamePrefix + strings.ToLower(usernameEncoding.EncodeToString(id[:]))
}

// UsernameToUUID reverses UUIDToUsername.
func UsernameToUUID(username string) (uuid.UUID, error) {
	if !strings.HasPrefix(username, usernamePrefix) || len(username) != usernameLength {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	raw, err := usernameEncoding.DecodeString(strings.ToUpper(username[len(usernamePrefix):]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrInvalidUsername, username, err)
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrInvalidUsername, username, err)
	}

	return id, nil
}

// IsGeneratedUsername reports whether username is the derived username of id.
func IsGeneratedUsername(username string, id uuid.UUID) bool {
	return username == UUIDToUsername(id)
}
