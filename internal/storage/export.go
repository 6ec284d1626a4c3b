package storage

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// ExportMarkdown renders a room's files and chat as a markdown document.
func ExportMarkdown(roomID string, snap *Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Room %s\n\n", roomID))
	b.WriteString(fmt.Sprintf("- **Files:** %d\n", len(snap.Files)))
	b.WriteString(fmt.Sprintf("- **Messages:** %d\n", len(snap.Messages)))
	b.WriteString("\n---\n\n")

	for _, f := range snap.Files {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", name))
		if f.UpdatedAt != "" {
			b.WriteString(fmt.Sprintf("_Updated %s_\n\n", f.UpdatedAt))
		}
		fence := fenceFor(f.Content)
		b.WriteString(fmt.Sprintf("%s%s\n%s\n%s\n\n", fence, fenceLanguage(name), f.Content, fence))
	}

	if len(snap.Messages) > 0 {
		b.WriteString("## Chat\n\n")
		for _, m := range snap.Messages {
			who := m.UserID
			if who == "" {
				who = "anonymous"
			}
			if m.CreatedAt != "" {
				b.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", who, m.CreatedAt, m.Content))
			} else {
				b.WriteString(fmt.Sprintf("- **%s**: %s\n", who, m.Content))
			}
		}
	}

	return b.String()
}

// ExportJSON renders a room snapshot as formatted JSON.
func ExportJSON(roomID string, snap *Snapshot) ([]byte, error) {
	export := struct {
		RoomID   string    `json:"room_id"`
		Snapshot *Snapshot `json:"snapshot"`
	}{
		RoomID:   roomID,
		Snapshot: snap,
	}
	return json.MarshalIndent(export, "", "  ")
}

// fenceFor returns a backtick fence longer than any run inside content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

func fenceLanguage(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}
