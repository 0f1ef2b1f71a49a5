// Package presence tracks which user is reachable through which live
// connection handle right now.
package presence

import (
	"context"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Handle is an opaque connection handle. Handles minted by the gateway have
// the form "<nodeID>/<connID>".
type Handle string

// NewHandle builds the handle of connection connID on node nodeID
func NewHandle(nodeID, connID string) Handle {
	return Handle(nodeID + "/" + connID)
}

// Node returns the node that owns the handle, or "" if the handle has no node prefix
func (h Handle) Node() string {
	if i := strings.LastIndexByte(string(h), '/'); i >= 0 {
		return string(h[:i])
	}
	return ""
}

// Registry maps a user to at most one live connection handle.
//
// Register overwrites unconditionally and returns the handle it replaced.
// Unregister deletes only if the stored handle equals h, so a stale
// connection's teardown never evicts a newer registration.
type Registry interface {
	Register(ctx context.Context, userID uuid.UUID, h Handle) (prev Handle, err error)
	Lookup(ctx context.Context, userID uuid.UUID) (Handle, bool, error)
	Unregister(ctx context.Context, userID uuid.UUID, h Handle) (bool, error)
}

// MemoryRegistry is a process-local Registry partitioned into independently
// locked shards keyed by user.
type MemoryRegistry struct {
	shards []*shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Handle
}

// NewMemoryRegistry creates a registry with n shards (minimum 1)
func NewMemoryRegistry(n int) *MemoryRegistry {
	if n < 1 {
		n = 1
	}
	r := &MemoryRegistry{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[uuid.UUID]Handle)}
	}
	return r
}

func (r *MemoryRegistry) shardFor(userID uuid.UUID) *shard {
	return r.shards[xxhash.Sum64(userID[:])%uint64(len(r.shards))]
}

// Register stores h for userID and returns the previous handle, if any
func (r *MemoryRegistry) Register(_ context.Context, userID uuid.UUID, h Handle) (Handle, error) {
	s := r.shardFor(userID)
	s.mu.Lock()
	prev := s.entries[userID]
	s.entries[userID] = h
	s.mu.Unlock()
	return prev, nil
}

// Lookup returns the current handle for userID
func (r *MemoryRegistry) Lookup(_ context.Context, userID uuid.UUID) (Handle, bool, error) {
	s := r.shardFor(userID)
	s.mu.RLock()
	h, ok := s.entries[userID]
	s.mu.RUnlock()
	return h, ok, nil
}

// Unregister removes the mapping only while it still points at h
func (r *MemoryRegistry) Unregister(_ context.Context, userID uuid.UUID, h Handle) (bool, error) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[userID]; !ok || cur != h {
		return false, nil
	}
	delete(s.entries, userID)
	return true, nil
}

// Len returns the number of registered users
func (r *MemoryRegistry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
