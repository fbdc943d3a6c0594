package domain

import (
	"context"
	"io"
	"time"
)

// SignalBus is the event broadcaster between the arena core and its
// consumers (websocket hub, notifiers). Implemented on Redis Pub/Sub with a
// durable stream mirror.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// StreamMessage is one entry read back from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// RosterCache caches the eligible-agent id set with a short TTL so fighter
// selection does not hit the database on every cycle. Safe to recompute
// concurrently; a miss is never an error.
type RosterCache interface {
	GetEligible(ctx context.Context) ([]string, bool, error)
	SetEligible(ctx context.Context, ids []string, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// LockManager provides a coarse distributed lock so at most one arena
// instance drives the match cycle against a shared ledger signer.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Refresh(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RateLimiter bounds request rates per key (e.g. bettor address on the bet
// endpoint).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter writes an object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
}

// Archiver exports aged records to cold storage.
type Archiver interface {
	ArchiveHistory(ctx context.Context, before time.Time) (int64, error)
	ArchiveBets(ctx context.Context, before time.Time) (int64, error)
}
