// Package inmem keeps versions and documents in process memory. It backs
// tests, the CLI and servers started without a database.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/splitflow"
)

// Store implements splitflow.Store.
type Store struct {
	mu       sync.RWMutex
	versions []splitflow.Version
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema forgets every version.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	s.versions = nil
	s.mu.Unlock()
	return nil
}

// SaveVersion stores a copy of v under a fresh ID and timestamp.
func (s *Store) SaveVersion(_ context.Context, v *splitflow.Version) (*splitflow.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *v
	saved.ID = uuid.New()
	saved.CreatedAt = s.now().UTC()
	if n := len(s.versions); n > 0 && !saved.CreatedAt.After(s.versions[n-1].CreatedAt) {
		saved.CreatedAt = s.versions[n-1].CreatedAt.Add(time.Microsecond)
	}
	saved.Rows = append([]splitflow.Row(nil), v.Rows...)
	s.versions = append(s.versions, saved)

	out := saved
	return &out, nil
}

// GetVersion returns nil, nil if no version has the id.
func (s *Store) GetVersion(_ context.Context, id uuid.UUID) (*splitflow.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions {
		if v.ID == id {
			return copyVersion(v), nil
		}
	}
	return nil, nil
}

// LatestVersion returns nil, nil when nothing has been saved.
func (s *Store) LatestVersion(context.Context) (*splitflow.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.versions) == 0 {
		return nil, nil
	}
	return copyVersion(s.versions[len(s.versions)-1]), nil
}

// ListVersions returns up to limit versions, newest first, without rows.
func (s *Store) ListVersions(_ context.Context, limit int) ([]splitflow.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]splitflow.Version, 0, len(s.versions))
	for _, v := range s.versions {
		v.Rows = nil
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyVersion(v splitflow.Version) *splitflow.Version {
	v.Rows = append([]splitflow.Row(nil), v.Rows...)
	return &v
}
