// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost matches the work factor used for interactive logins.
const DefaultCost = 10

var ErrEmptyPassword = errors.New("password must not be empty")

// Codec hashes and verifies passwords one way.
type Codec interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

var _ Codec = (*BcryptCodec)(nil)

// BcryptCodec bounds the number of concurrent bcrypt computations so a burst
// of logins cannot occupy every CPU.
type BcryptCodec struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcryptCodec creates a codec. A cost outside bcrypt's range falls back to
// DefaultCost and maxConcurrent <= 0 means one slot per CPU.
func NewBcryptCodec(cost, maxConcurrent int) *BcryptCodec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	return &BcryptCodec{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Cost returns the work factor new digests are created with.
func (c *BcryptCodec) Cost() int {
	return c.cost
}

// Hash returns a salted digest of plaintext.
func (c *BcryptCodec) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer c.slots.Release(1)

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plaintext matches digest. A mismatch or a malformed
// digest yields false with a nil error; an error is only returned when ctx
// ends before a slot is available.
func (c *BcryptCodec) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer c.slots.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil, nil
}
