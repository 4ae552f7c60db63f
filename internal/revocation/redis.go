package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "go-oidc-users"

// RedisStore keeps logout events in redis.
// Every event owns one key; a second key per (issuer, sid) answers IsTerminated.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a store on client. A zero retention keeps events forever.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisStore{client: client, prefix: prefix, retention: retention}
}

// Record stores the event with SETNX so repeated deliveries keep the first timestamp.
func (s *RedisStore) Record(ctx context.Context, issuer, subject, sessionID string) error {
	if issuer == "" {
		return ErrIssuerEmpty
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, s.eventKey(issuer, subject, sessionID), now, s.retention)

		if sessionID != "" {
			pipe.SetNX(ctx, s.sessionKey(issuer, sessionID), now, s.retention)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record logout event: %w", err)
	}

	return nil
}

// IsTerminated reports whether a logout event exists for (issuer, sessionID).
func (s *RedisStore) IsTerminated(ctx context.Context, issuer, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	n, err := s.client.Exists(ctx, s.sessionKey(issuer, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query logout events: %w", err)
	}

	return n > 0, nil
}

func (s *RedisStore) eventKey(issuer, subject, sessionID string) string {
	return s.prefix + ":logout:event:" + digest(issuer, subject, sessionID)
}

func (s *RedisStore) sessionKey(issuer, sessionID string) string {
	return s.prefix + ":logout:sid:" + digest(issuer, sessionID)
}

// digest hashes length-prefixed parts so ("a:b", "c") and ("a", "b:c") differ.
func digest(parts ...string) string {
	h := sha256.New()

	var size [8]byte

	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}

	return hex.EncodeToString(h.Sum(nil))
}
