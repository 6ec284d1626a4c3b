package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/codecollab/internal/storage"
)

func snapshot(files ...storage.FileRecord) *storage.Snapshot {
	return &storage.Snapshot{Files: files}
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	snap, ok := s.Get("nope")
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestStore_PutGetReturnsCopies(t *testing.T) {
	s := New()
	orig := snapshot(storage.FileRecord{ID: "f1", Content: "a"})
	s.Put("r1", orig)

	// Mutating the caller's value does not reach the store.
	orig.Files[0].Content = "changed"

	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "a", got.Files[0].Content)

	// Nor does mutating a returned copy.
	got.Files[0].Content = "changed again"
	again, _ := s.Get("r1")
	assert.Equal(t, "a", again.Files[0].Content)
}

func TestStore_PutReplaces(t *testing.T) {
	s := New()
	s.Put("r1", snapshot(storage.FileRecord{ID: "f1"}))
	s.Put("r1", snapshot(storage.FileRecord{ID: "f2"}, storage.FileRecord{ID: "f3"}))

	got, _ := s.Get("r1")
	require.Len(t, got.Files, 2)
	assert.Equal(t, "f2", got.Files[0].ID)
}

func TestStore_MutateAbsentRoomDoesNotCreateIt(t *testing.T) {
	s := New()
	called := false
	ok := s.Mutate("ghost", func(*storage.Snapshot) { called = true })

	assert.False(t, ok)
	assert.False(t, called)
	assert.Empty(t, s.Rooms())
	_, exists := s.Get("ghost")
	assert.False(t, exists)
}

func TestStore_Mutate(t *testing.T) {
	s := New()
	s.Put("r1", snapshot(storage.FileRecord{ID: "f1", Content: "old"}))

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var updated bool
	ok := s.Mutate("r1", func(snap *storage.Snapshot) {
		updated = snap.UpdateFileContent("f1", "new", now)
	})
	require.True(t, ok)
	assert.True(t, updated)

	got, _ := s.Get("r1")
	assert.Equal(t, "new", got.Files[0].Content)
	assert.Equal(t, "2026-01-02T03:04:05.000Z", got.Files[0].UpdatedAt)
}

func TestStore_Rooms(t *testing.T) {
	s := New()
	s.Put("b", nil)
	s.Put("a", snapshot())
	assert.Equal(t, []string{"a", "b"}, s.Rooms())

	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Empty(t, got.Files)
}

func TestStore_ConcurrentMutationsAreSerialized(t *testing.T) {
	s := New()
	const rooms, writers, perWriter = 4, 8, 50
	for r := 0; r < rooms; r++ {
		s.Put(fmt.Sprintf("room-%d", r), snapshot())
	}

	var wg sync.WaitGroup
	for r := 0; r < rooms; r++ {
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(room string, w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					s.Mutate(room, func(snap *storage.Snapshot) {
						snap.AppendMessage(storage.MessageRecord{ID: fmt.Sprintf("%d-%d", w, i)})
					})
					_, _ = s.Get(room)
				}
			}(fmt.Sprintf("room-%d", r), w)
		}
	}
	wg.Wait()

	for r := 0; r < rooms; r++ {
		got, ok := s.Get(fmt.Sprintf("room-%d", r))
		require.True(t, ok)
		assert.Len(t, got.Messages, writers*perWriter)
	}
}
