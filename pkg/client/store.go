package client

import (
	"sync"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/stream"

	"gorm.io/datatypes"
)

// MessageStore is the client's view of each chat, keyed by message ID so
// that the same message arriving twice is merged once.
type MessageStore struct {
	mu    sync.Mutex
	chats map[string]*chatMessages
}

type chatMessages struct {
	order []string
	byID  map[string]*models.Message
	// applied counts the deltas folded into each message still being
	// assembled; a message is complete once it has no entry
	applied map[string]int
}

// Cursor is one consumer's position in the streams it reads. Every tap
// replays a stream from its first event, so concurrent taps of the same
// stream see the same delta sequence; the cursor lets the store fold each
// delta index exactly once whichever tap delivers it first.
type Cursor struct {
	seen map[string]int
}

func NewCursor() *Cursor { return &Cursor{seen: make(map[string]int)} }

func NewMessageStore() *MessageStore {
	return &MessageStore{chats: make(map[string]*chatMessages)}
}

func (s *MessageStore) chat(chatID string) *chatMessages {
	c, ok := s.chats[chatID]
	if !ok {
		c = &chatMessages{byID: make(map[string]*models.Message), applied: make(map[string]int)}
		s.chats[chatID] = c
	}
	return c
}

// Merge appends msg unless its ID is known. A message still being assembled
// from deltas is replaced by the complete one. It reports whether the store
// changed.
func (s *MessageStore) Merge(chatID string, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chat(chatID)

	if existing, ok := c.byID[msg.ID]; ok {
		if _, assembling := c.applied[msg.ID]; !assembling {
			return false
		}
		*existing = msg
		delete(c.applied, msg.ID)
		return true
	}
	m := msg
	c.byID[msg.ID] = &m
	c.order = append(c.order, msg.ID)
	return true
}

// Apply folds one stream event, read by the consumer at cur, into the
// chat.
func (s *MessageStore) Apply(chatID string, ev stream.Event, cur *Cursor) {
	switch ev.Type {
	case stream.EventAppendMessage:
		if ev.Message != nil {
			s.Merge(chatID, *ev.Message)
		}
		return
	case stream.EventStart, stream.EventTextDelta, stream.EventFinish, stream.EventError:
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chat(chatID)
	msg, known := c.byID[ev.MessageID]
	applied, assembling := c.applied[ev.MessageID]

	switch ev.Type {
	case stream.EventStart:
		cur.seen[ev.MessageID] = 0
		if !known {
			c.byID[ev.MessageID] = &models.Message{ID: ev.MessageID, ChatID: chatID, Role: models.RoleAssistant}
			c.order = append(c.order, ev.MessageID)
			c.applied[ev.MessageID] = 0
		}
	case stream.EventTextDelta:
		idx := cur.seen[ev.MessageID]
		cur.seen[ev.MessageID] = idx + 1
		// earlier indexes were folded by another tap, later ones would
		// leave a gap
		if !known || !assembling || idx != applied {
			return
		}
		appendText(msg, ev.Delta)
		c.applied[ev.MessageID] = applied + 1
	case stream.EventFinish, stream.EventError:
		delete(c.applied, ev.MessageID)
		delete(cur.seen, ev.MessageID)
	}
}

func appendText(msg *models.Message, delta string) {
	n := len(msg.Parts)
	if n > 0 && msg.Parts[n-1].Type == models.PartText {
		msg.Parts[n-1].Text += delta
		return
	}
	msg.Parts = datatypes.NewJSONSlice(append([]models.Part(msg.Parts), models.Part{Type: models.PartText, Text: delta}))
}

// Messages returns a copy of the chat's messages in arrival order.
func (s *MessageStore) Messages(chatID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]models.Message, 0, len(c.order))
	for _, id := range c.order {
		m := *c.byID[id]
		m.Parts = datatypes.NewJSONSlice(append([]models.Part(nil), m.Parts...))
		out = append(out, m)
	}
	return out
}
