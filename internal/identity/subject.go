package identity

import (
	"github.com/google/uuid"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
)

// DefaultNamespace is the UUIDv5 namespace for subjects that are not UUIDs
// and arrive without a tenant id.
var DefaultNamespace = uuid.MustParse("0f7a3c2e-5d4b-4e8a-9c61-2b8d7e9f1a35") //nolint:gochecknoglobals

// SubjectUUID returns the local UUID of the sub claim.
//
// A UUID subject is used as is. Any other subject is hashed into a version 5
// UUID in the namespace of the tid claim, or DefaultNamespace without one.
// A tid that is not a UUID is hashed into DefaultNamespace first.
func SubjectUUID(c claims.Claims) (uuid.UUID, error) {
	sub, _ := c.String("sub")
	if sub == "" {
		return uuid.Nil, ErrInvalidPayload
	}

	if id, err := uuid.Parse(sub); err == nil {
		return id, nil
	}

	return uuid.NewSHA1(namespace(c), []byte(sub)), nil
}

func namespace(c claims.Claims) uuid.UUID {
	tid, _ := c.String("tid")
	if tid == "" {
		return DefaultNamespace
	}

	if ns, err := uuid.Parse(tid); err == nil {
		return ns
	}

	return uuid.NewSHA1(DefaultNamespace, []byte(tid))
}
