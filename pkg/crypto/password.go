package crypto

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor used unless a deployment overrides it.
const DefaultCost = 10

// Hasher hashes and verifies passwords with bcrypt. Hashing is CPU bound, so
// at most workers operations run at the same time; callers beyond that wait
// for a free slot or for their context to end.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewHasher returns a Hasher. Out of range costs fall back to DefaultCost and
// a non-positive worker count uses GOMAXPROCS.
func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, slots: semaphore.NewWeighted(int64(workers))}
}

// Cost reports the work factor used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.slots.Release(1)
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. A malformed hash is a
// mismatch, not an error; the only error is a context that ended while
// waiting for a slot.
func (h *Hasher) Verify(ctx context.Context, plain, hashed string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.slots.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil, nil
}
