package store

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"regdash/internal/cache"
)

// ReadObserver receives the outcome of every backend snapshot read.
type ReadObserver interface {
	ObserveRead(elapsed time.Duration, cached bool, err error)
}

// SharedReader lets concurrent assemblies for the same period share one
// snapshot read. Identical in-flight reads are coalesced, and completed
// snapshots are kept for a short TTL when a cache is configured.
type SharedReader struct {
	Reader
	group    singleflight.Group
	cache    *cache.LRUCache[Snapshot]
	timeout  time.Duration
	observer ReadObserver
}

type SharedOption func(*SharedReader)

// WithCache keeps completed snapshots in c.
func WithCache(c *cache.LRUCache[Snapshot]) SharedOption {
	return func(s *SharedReader) { s.cache = c }
}

// WithTimeout bounds each backend read.
func WithTimeout(d time.Duration) SharedOption {
	return func(s *SharedReader) { s.timeout = d }
}

func WithReadObserver(o ReadObserver) SharedOption {
	return func(s *SharedReader) { s.observer = o }
}

func NewSharedReader(r Reader, opts ...SharedOption) *SharedReader {
	s := &SharedReader{Reader: r}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadSnapshot returns a shared snapshot. Callers must not modify it.
func (s *SharedReader) ReadSnapshot(ctx context.Context, q SnapshotQuery) (Snapshot, error) {
	key := q.Key()
	if s.cache != nil {
		if snap, ok := s.cache.Get(key); ok {
			s.observe(0, true, nil)
			return snap, nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// The read outlives any single caller so that cancelling one
		// request does not fail the others waiting on it.
		readCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			readCtx, cancel = context.WithTimeout(readCtx, s.timeout)
			defer cancel()
		}

		started := time.Now()
		snap, err := s.Reader.ReadSnapshot(readCtx, q)
		s.observe(time.Since(started), false, err)
		if err != nil {
			return Snapshot{}, err
		}
		if s.cache != nil {
			s.cache.Set(key, snap)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "Snapshot read shared", "component", "storage", "key", key)
		}
		return res.Val.(Snapshot), nil
	}
}

func (s *SharedReader) observe(elapsed time.Duration, cached bool, err error) {
	if s.observer != nil {
		s.observer.ObserveRead(elapsed, cached, err)
	}
}
