package calls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatcall-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// BusyGuard keeps each participant in at most one live call.
type BusyGuard interface {
	Acquire(ctx context.Context, userID, callID string) (bool, error)
	Release(ctx context.Context, userID, callID string) error
}

// RedisBusyGuard stores one slot per user in Redis with a TTL, so a crashed
// process cannot leave a user busy forever.
type RedisBusyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBusyGuard(rdb *redis.Client, ttl time.Duration) *RedisBusyGuard {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisBusyGuard{rdb: rdb, ttl: ttl}
}

func busyKey(userID string) string {
	return fmt.Sprintf("calls:busy:%s", userID)
}

func (g *RedisBusyGuard) Acquire(ctx context.Context, userID, callID string) (bool, error) {
	return utils.AcquireSlot(ctx, g.rdb, busyKey(userID), callID, 1, g.ttl)
}

func (g *RedisBusyGuard) Release(ctx context.Context, userID, callID string) error {
	return utils.ReleaseSlot(ctx, g.rdb, busyKey(userID), callID)
}

// MemoryBusyGuard is an in-process guard for tests and single-node dev runs.
type MemoryBusyGuard struct {
	mu    sync.Mutex
	slots map[string]string
}

func NewMemoryBusyGuard() *MemoryBusyGuard {
	return &MemoryBusyGuard{slots: map[string]string{}}
}

func (g *MemoryBusyGuard) Acquire(_ context.Context, userID, callID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	holder, ok := g.slots[userID]
	if ok && holder != callID {
		return false, nil
	}
	g.slots[userID] = callID
	return true, nil
}

func (g *MemoryBusyGuard) Release(_ context.Context, userID, callID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[userID] == callID {
		delete(g.slots, userID)
	}
	return nil
}

// Busy reports whether userID currently holds a slot.
func (g *MemoryBusyGuard) Busy(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.slots[userID]
	return ok
}
