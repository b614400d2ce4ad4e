package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	orderID uuid.UUID
	done    bool
	expires time.Time
}

// MemoryStore keeps keys in process. Suitable for a single replica.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, clock: clock}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.done {
			return Result{State: StateCompleted, OrderID: e.orderID}, nil
		}
		return Result{State: StateInProgress}, nil
	}

	s.entries[key] = memoryEntry{expires: now.Add(s.ttl)}
	s.sweep(now)
	return Result{State: StateClaimed}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return ErrNotClaimed
	}
	s.entries[key] = memoryEntry{orderID: orderID, done: true, expires: s.clock.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// sweep drops expired entries; callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
}
