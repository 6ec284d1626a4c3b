// Package memory is the process-lifetime implementation of storage.Store.
package memory

import (
	"sort"
	"sync"

	"github.com/michaelbrown/codecollab/internal/storage"
)

// room holds one snapshot. mu serializes every read and write of snap.
type room struct {
	mu   sync.Mutex
	snap *storage.Snapshot
}

// Store keeps snapshots in memory. The map lock is held only to find or
// insert a room, so work on different rooms never contends.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{rooms: make(map[string]*room)}
}

func (s *Store) lookup(roomID string) (*room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	return r, ok
}

func (s *Store) getOrCreate(roomID string) *room {
	if r, ok := s.lookup(roomID); ok {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		return r
	}
	r := &room{}
	s.rooms[roomID] = r
	return r
}

// Get returns a deep copy of the room's snapshot.
func (s *Store) Get(roomID string) (*storage.Snapshot, bool) {
	r, ok := s.lookup(roomID)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap == nil {
		return nil, false
	}
	return r.snap.Clone(), true
}

// Put stores a deep copy of snap, replacing any previous snapshot.
func (s *Store) Put(roomID string, snap *storage.Snapshot) {
	if snap == nil {
		snap = &storage.Snapshot{}
	}
	c := snap.Clone()
	r := s.getOrCreate(roomID)
	r.mu.Lock()
	r.snap = c
	r.mu.Unlock()
}

// Mutate applies fn under the room lock. Rooms without a snapshot are left
// alone and not created.
func (s *Store) Mutate(roomID string, fn func(*storage.Snapshot)) bool {
	r, ok := s.lookup(roomID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap == nil {
		return false
	}
	fn(r.snap)
	return true
}

// Rooms lists rooms with a snapshot, sorted.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
