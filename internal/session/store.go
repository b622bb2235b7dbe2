// Package session provides the per-conversation state store: a durable
// Redis-backed key/value store with TTL semantics and a silent in-process
// fallback for when Redis is unreachable.
//
// Contract:
//   - Get returns (nil, nil) for an absent or expired session.
//   - Set stores the session with the given TTL (DefaultTTL when <= 0).
//   - Delete removes the session; deleting an absent session is a no-op.
//   - Extend resets the TTL of an existing session without touching its data.
//
// When the durable store is reachable it is the single source of truth.
// When it is not, the Failover wrapper transparently serves the same
// operations from an in-process map whose expiry is enforced by a timer
// scheduled at Set time, so a stale entry disappears even if it is never
// read again. The degraded mode gives each process an independent view of
// sessions, which is acceptable only for single-instance deployments.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/whatsorder/go-orders-backend/internal/chat"
)

// DefaultTTL is the session lifetime applied when the caller passes a
// non-positive TTL.
const DefaultTTL = 30 * time.Minute

// Session is the stored per-conversation state. Idle conversations have no
// session at all; a stored session always carries a non-idle state.
type Session struct {
	State     chat.State        `json:"state"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store is the session store contract shared by the Redis backend, the
// in-memory fallback, and the Failover wrapper.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, id string, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttl time.Duration) error
}

// Memory is the in-process fallback store. Expiry is enforced eagerly: each
// Set schedules a time.AfterFunc that removes the entry when the TTL lapses.
// Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	sess  *Session
	timer *time.Timer
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

// Get returns the stored session, or (nil, nil) when absent.
func (m *Memory) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		return e.sess, nil
	}
	return nil, nil
}

// Set stores s under id and schedules its removal after ttl. A second Set
// for the same id replaces both the session and its expiry timer.
func (m *Memory) Set(_ context.Context, id string, s *Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[id]; ok {
		prev.timer.Stop()
	}
	e := &memoryEntry{sess: s}
	e.timer = time.AfterFunc(ttl, func() { m.expire(id, e) })
	m.entries[id] = e
	return nil
}

// expire removes the entry only if it is still the one the timer was
// scheduled for; a Set that raced the timer wins.
func (m *Memory) expire(id string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[id]; ok && cur == e {
		delete(m.entries, id)
	}
}

// Delete removes the session and cancels its expiry timer.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.timer.Stop()
		delete(m.entries, id)
	}
	return nil
}

// Extend reschedules the expiry timer of an existing session. Extending an
// absent session is a no-op.
func (m *Memory) Extend(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.timer.Stop()
		e.timer = time.AfterFunc(ttl, func() { m.expire(id, e) })
	}
	return nil
}

// Len reports the number of live sessions. Used for the degraded-mode
// status surface and by tests.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
