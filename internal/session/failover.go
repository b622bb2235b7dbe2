// Package session – failover wrapper.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Failover serves every operation from the primary (durable) store and falls
// back to the in-memory store when the primary errors. Primary failures are
// logged at warn level and never returned to the caller: the conversation
// layer must keep working through a Redis outage, just with process-local
// state.
//
// While the primary is healthy it is the single source of truth and the
// memory store is not written. State accumulated in memory during an outage
// is accepted as lost once the primary recovers.
type Failover struct {
	primary  Store
	fallback *Memory
	log      zerolog.Logger
}

// NewFailover wraps primary with the in-memory fallback. When primary is
// nil (Redis not configured) every operation goes straight to memory.
func NewFailover(primary Store, fallback *Memory, log zerolog.Logger) *Failover {
	if fallback == nil {
		fallback = NewMemory()
	}
	return &Failover{primary: primary, fallback: fallback, log: log}
}

// Get reads from the primary, degrading to memory on error.
func (f *Failover) Get(ctx context.Context, id string) (*Session, error) {
	if f.primary != nil {
		s, err := f.primary.Get(ctx, id)
		if err == nil {
			return s, nil
		}
		f.degraded("get", err)
	}
	return f.fallback.Get(ctx, id)
}

// Set writes to the primary, degrading to memory on error.
func (f *Failover) Set(ctx context.Context, id string, s *Session, ttl time.Duration) error {
	if f.primary != nil {
		err := f.primary.Set(ctx, id, s, ttl)
		if err == nil {
			return nil
		}
		f.degraded("set", err)
	}
	return f.fallback.Set(ctx, id, s, ttl)
}

// Delete removes from both stores so a session armed during an outage does
// not resurface after recovery, and vice versa.
func (f *Failover) Delete(ctx context.Context, id string) error {
	if f.primary != nil {
		if err := f.primary.Delete(ctx, id); err != nil {
			f.degraded("delete", err)
		}
	}
	return f.fallback.Delete(ctx, id)
}

// Extend renews the TTL on the primary, degrading to memory on error.
func (f *Failover) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if f.primary != nil {
		err := f.primary.Extend(ctx, id, ttl)
		if err == nil {
			return nil
		}
		f.degraded("extend", err)
	}
	return f.fallback.Extend(ctx, id, ttl)
}

func (f *Failover) degraded(op string, err error) {
	f.log.Warn().Err(err).Str("op", op).Msg("session store degraded, using in-memory fallback")
}
