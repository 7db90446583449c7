package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Codes live this long; a code is deleted on first successful verify.
const ttl = 5 * time.Minute

// ErrCodeMismatch is returned when no valid code matches.
var ErrCodeMismatch = errors.New("invalid or expired code")

// NewRedis builds the redis client the OTP store runs on.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Store issues and verifies one-time codes, one live code per
// (email, purpose) pair. Redis TTLs handle expiry.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(email, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

// Issue generates a fresh 6-digit code for the pair and stores it with a
// 5 minute TTL, replacing any earlier code.
func (s *Store) Issue(ctx context.Context, email, purpose string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := s.rdb.Set(ctx, key(email, purpose), code, ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks the code and consumes it on success, so a code can only be
// used once.
func (s *Store) Verify(ctx context.Context, email, purpose, code string) error {
	k := key(email, purpose)
	stored, err := s.rdb.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeMismatch
		}
		return fmt.Errorf("get code: %w", err)
	}
	if stored != code {
		return ErrCodeMismatch
	}
	if err := s.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// generateCode returns a 6-digit code with leading zeros preserved.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
