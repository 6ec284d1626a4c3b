package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecord_PreservesUnknownFields(t *testing.T) {
	in := `{"id":"f1","name":"main.py","content":"print(1)","project_id":"p9","language":"python","size":12}`

	var f FileRecord
	require.NoError(t, json.Unmarshal([]byte(in), &f))
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, "main.py", f.Name)
	require.Contains(t, f.Extra, "project_id")

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestMessageRecord_PreservesUnknownFields(t *testing.T) {
	in := `{"id":"m1","user_id":"u1","content":"hi","created_at":"2026-01-01T00:00:00.000Z","user_name":"Ada","project_id":"p1"}`

	var m MessageRecord
	require.NoError(t, json.Unmarshal([]byte(in), &m))
	assert.Equal(t, "u1", m.UserID)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestFileRecord_RejectsWrongTypes(t *testing.T) {
	var f FileRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":42}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &f))
}

func TestSnapshot_JSON(t *testing.T) {
	in := `{"project":{"id":"p1","name":"demo"},"files":[{"id":"f1","content":"x"}],"messages":[]}`

	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	empty, err := json.Marshal(Snapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"files":[],"messages":[]}`, string(empty))
}

func TestSnapshot_Helpers(t *testing.T) {
	s := &Snapshot{}
	s.AddFile(FileRecord{ID: "a", Content: "1"})
	s.AddFile(FileRecord{ID: "b", Content: "2"})

	now := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("X", 3600))
	assert.True(t, s.UpdateFileContent("b", "22", now))
	assert.Equal(t, "22", s.Files[1].Content)
	assert.Equal(t, "2026-03-04T04:06:07.008Z", s.Files[1].UpdatedAt)
	assert.False(t, s.UpdateFileContent("zzz", "x", now))

	assert.True(t, s.RemoveFile("a"))
	assert.False(t, s.RemoveFile("a"))
	require.Len(t, s.Files, 1)
	assert.Equal(t, "b", s.Files[0].ID)

	s.AppendMessage(MessageRecord{ID: "m1"})
	s.AppendMessage(MessageRecord{ID: "m2"})
	assert.Equal(t, "m2", s.Messages[1].ID)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := &Snapshot{
		Project: json.RawMessage(`{"id":"p"}`),
		Files: []FileRecord{{
			ID:    "f",
			Extra: map[string]json.RawMessage{"k": json.RawMessage(`"v"`)},
		}},
	}
	c := s.Clone()
	c.Project[2] = 'X'
	c.Files[0].Extra["k"][1] = 'Z'
	c.Files[0].ID = "g"

	assert.Equal(t, `{"id":"p"}`, string(s.Project))
	assert.Equal(t, `"v"`, string(s.Files[0].Extra["k"]))
	assert.Equal(t, "f", s.Files[0].ID)

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Clone())
}
