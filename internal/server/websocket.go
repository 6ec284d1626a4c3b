package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/michaelbrown/codecollab/internal/logger"
	"github.com/michaelbrown/codecollab/internal/storage"
)

// Canonical event names.
const (
	EventRequestSnapshot    = "request-snapshot"
	EventShareSnapshot      = "share-snapshot"
	EventSnapshot           = "snapshot"
	EventFileContentChanged = "file-content-changed"
	EventFileCreated        = "file-created"
	EventFileDeleted        = "file-deleted"
	EventChatMessage        = "chat-message"
	EventError              = "error"
)

// aliases maps the event names used by earlier clients to canonical names.
var aliases = map[string]string{
	"request-project-data": EventRequestSnapshot,
	"share-project-data":   EventShareSnapshot,
	"project-data":         EventSnapshot,
	"code-change":          EventFileContentChanged,
	"new-message":          EventChatMessage,
}

// legacyNames is the reverse of aliases, used when writing to clients that
// sent a legacy name.
var legacyNames = map[string]string{
	EventSnapshot:           "project-data",
	EventFileContentChanged: "code-change",
	EventChatMessage:        "new-message",
}

type contentChange struct {
	FileID  string  `json:"fileId"`
	Content *string `json:"content"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// handleWebSocket upgrades the connection and serves it until it closes.
// Without a roomId the connection is accepted but never joins a room.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID := q.Get("roomId")
	userID := q.Get("userId")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade error", logger.FieldError, err)
		return
	}

	c := newClient(conn, roomID, userID, s.log)
	if q.Get("dialect") == "legacy" {
		c.legacy.Store(true)
	}

	handle := s.handleFrame
	if roomID == "" {
		handle = func(*Client, []byte) {}
	} else {
		s.hub.Join(c)
		c.log.Infow("user joined room")
	}

	go c.writePump()
	c.readPump(handle)

	if roomID != "" {
		s.hub.Leave(c)
		c.log.Infow("user left room")
	}
	c.close()
}

// handleFrame applies one inbound event. A panic while applying an event is
// contained to that event.
func (s *Server) handleFrame(c *Client, data []byte) {
	var in envelope
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Errorw("panic handling event",
				logger.FieldEvent, in.Event,
				logger.FieldError, rec,
			)
			s.sendError(c, "internal error")
		}
	}()

	if err := json.Unmarshal(data, &in); err != nil || in.Event == "" {
		s.sendError(c, "malformed message")
		return
	}

	event := in.Event
	if canonical, ok := aliases[event]; ok {
		event = canonical
		c.legacy.Store(true)
	}

	if err := s.apply(c, event, in.Data); err != nil {
		c.log.Debugw("rejected event", logger.FieldEvent, in.Event, logger.FieldError, err)
		s.sendError(c, err.Error())
	}
}

// apply updates the room snapshot for event and relays it to peers.
func (s *Server) apply(c *Client, event string, data json.RawMessage) error {
	room := c.roomID

	if event == EventRequestSnapshot {
		var payload json.RawMessage
		if snap, ok := s.store.Get(room); ok {
			b, err := json.Marshal(snap)
			if err != nil {
				return errors.Wrap(err, "encoding snapshot")
			}
			payload = b
		}
		c.enqueue(frame{Event: EventSnapshot, Data: payload})
		return nil
	}

	if isNull(data) {
		return errors.Newf("%s: missing data", event)
	}

	switch event {
	case EventShareSnapshot:
		var snap storage.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return errors.Newf("%s: invalid snapshot", event)
		}
		s.store.Put(room, &snap)
		s.hub.Broadcast(room, c, frame{Event: EventSnapshot, Data: data})

	case EventFileContentChanged:
		var change contentChange
		if err := json.Unmarshal(data, &change); err != nil || change.FileID == "" || change.Content == nil {
			return errors.Newf("%s: expected fileId and content", event)
		}
		now := s.now()
		s.store.Mutate(room, func(snap *storage.Snapshot) {
			snap.UpdateFileContent(change.FileID, *change.Content, now)
		})
		s.hub.Broadcast(room, c, frame{Event: EventFileContentChanged, Data: data})

	case EventFileCreated:
		var f storage.FileRecord
		if err := json.Unmarshal(data, &f); err != nil || f.ID == "" {
			return errors.Newf("%s: expected a file with an id", event)
		}
		s.store.Mutate(room, func(snap *storage.Snapshot) { snap.AddFile(f) })
		s.hub.Broadcast(room, c, frame{Event: EventFileCreated, Data: data})

	case EventFileDeleted:
		var id string
		if err := json.Unmarshal(data, &id); err != nil || id == "" {
			return errors.Newf("%s: expected a file id", event)
		}
		s.store.Mutate(room, func(snap *storage.Snapshot) { snap.RemoveFile(id) })
		s.hub.Broadcast(room, c, frame{Event: EventFileDeleted, Data: data})

	case EventChatMessage:
		var m storage.MessageRecord
		if err := json.Unmarshal(data, &m); err != nil {
			return errors.Newf("%s: invalid message", event)
		}
		s.store.Mutate(room, func(snap *storage.Snapshot) { snap.AppendMessage(m) })
		s.hub.Broadcast(room, c, frame{Event: EventChatMessage, Data: data})

	default:
		return errors.Newf("unknown event %q", event)
	}
	return nil
}

func (s *Server) sendError(c *Client, msg string) {
	b, _ := json.Marshal(errorPayload{Message: msg})
	c.enqueue(frame{Event: EventError, Data: b})
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
