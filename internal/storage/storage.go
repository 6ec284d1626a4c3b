// Package storage defines the shared state of a collaboration room and the
// interface of the store that holds it.
package storage

import (
	"bytes"
	"encoding/json"
	"time"
)

// FileRecord is one file of a project. Fields the server does not interpret
// are kept in Extra and written back unchanged.
type FileRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// MessageRecord is one chat message. Messages are append-only.
type MessageRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Snapshot is the full state of a room as last shared by a client.
type Snapshot struct {
	Project  json.RawMessage `json:"project,omitempty"`
	Files    []FileRecord    `json:"files"`
	Messages []MessageRecord `json:"messages"`
}

// Store keeps one snapshot per room. Implementations must be safe for
// concurrent use and must serialize mutations within a room.
type Store interface {
	// Get returns a deep copy of the room's snapshot.
	Get(roomID string) (*Snapshot, bool)

	// Put replaces the room's snapshot, creating the room if needed.
	Put(roomID string, snap *Snapshot)

	// Mutate applies fn to the room's snapshot under the room lock. It
	// returns false, without calling fn, when the room has no snapshot.
	Mutate(roomID string, fn func(*Snapshot)) bool

	// Rooms lists rooms that have a snapshot.
	Rooms() []string
}

// Timestamp formats t the way clients send timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// UpdateFileContent sets the content of the file with id. It reports whether
// the file exists.
func (s *Snapshot) UpdateFileContent(id, content string, now time.Time) bool {
	for i := range s.Files {
		if s.Files[i].ID == id {
			s.Files[i].Content = content
			s.Files[i].UpdatedAt = Timestamp(now)
			return true
		}
	}
	return false
}

// AddFile appends f.
func (s *Snapshot) AddFile(f FileRecord) {
	s.Files = append(s.Files, f.Clone())
}

// RemoveFile drops every file with id. It reports whether one was removed.
func (s *Snapshot) RemoveFile(id string) bool {
	kept := s.Files[:0]
	for _, f := range s.Files {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	removed := len(kept) != len(s.Files)
	// Clear the tail so dropped records are not retained.
	for i := len(kept); i < len(s.Files); i++ {
		s.Files[i] = FileRecord{}
	}
	s.Files = kept
	return removed
}

// AppendMessage appends m.
func (s *Snapshot) AppendMessage(m MessageRecord) {
	s.Messages = append(s.Messages, m.Clone())
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{Project: cloneRaw(s.Project)}
	if s.Files != nil {
		c.Files = make([]FileRecord, len(s.Files))
		for i, f := range s.Files {
			c.Files[i] = f.Clone()
		}
	}
	if s.Messages != nil {
		c.Messages = make([]MessageRecord, len(s.Messages))
		for i, m := range s.Messages {
			c.Messages[i] = m.Clone()
		}
	}
	return c
}

// MarshalJSON writes nil slices as empty arrays.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	p := plain(s)
	if p.Files == nil {
		p.Files = []FileRecord{}
	}
	if p.Messages == nil {
		p.Messages = []MessageRecord{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy.
func (f FileRecord) Clone() FileRecord {
	f.Extra = cloneExtra(f.Extra)
	return f
}

func (f FileRecord) MarshalJSON() ([]byte, error) {
	type plain FileRecord
	return withExtra(plain(f), f.Extra)
}

func (f *FileRecord) UnmarshalJSON(data []byte) error {
	type plain FileRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "name", "content", "updated_at")
	if err != nil {
		return err
	}
	*f = FileRecord(p)
	f.Extra = extra
	return nil
}

// Clone returns a deep copy.
func (m MessageRecord) Clone() MessageRecord {
	m.Extra = cloneExtra(m.Extra)
	return m
}

func (m MessageRecord) MarshalJSON() ([]byte, error) {
	type plain MessageRecord
	return withExtra(plain(m), m.Extra)
}

func (m *MessageRecord) UnmarshalJSON(data []byte) error {
	type plain MessageRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "user_id", "content", "created_at")
	if err != nil {
		return err
	}
	*m = MessageRecord(p)
	m.Extra = extra
	return nil
}

// extraFields returns the members of the JSON object data not named in known.
func extraFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// withExtra marshals v and merges extra members into the resulting object.
// Members of v win over extra members with the same name.
func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return base, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		c[k] = cloneRaw(v)
	}
	return c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return bytes.Clone(raw)
}
