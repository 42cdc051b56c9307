package chat

import (
	"strings"
	"time"

	"eduhub-chat/internal/models"
)

// MessageEnvelope is the live, authoritative form of one chat message.
// Everything but SeenBy is fixed once built.
type MessageEnvelope struct {
	ID           string             `json:"id"`
	Text         string             `json:"text"`
	Sender       string             `json:"sender"`
	SenderUserID *string            `json:"userId"`
	RoomID       string             `json:"roomId"`
	CreatedAt    time.Time          `json:"createdAt"`
	Kind         models.ContentKind `json:"kind"`
	StickerURL   string             `json:"stickerUrl,omitempty"`
	FileURL      string             `json:"fileUrl,omitempty"`
	FileType     string             `json:"fileType,omitempty"`
	SeenBy       []string           `json:"seenBy"`
}

// IsGlobal reports whether the message goes to every connection.
func (m *MessageEnvelope) IsGlobal() bool {
	return m.RoomID == GeneralRoom
}

// snapshot copies the envelope so it can leave the coordinator loop while
// SeenBy keeps changing.
func (m *MessageEnvelope) snapshot() MessageEnvelope {
	cp := *m
	cp.SeenBy = append(make([]string, 0, len(m.SeenBy)), m.SeenBy...)
	return cp
}

func (m *MessageEnvelope) toModel() models.Message {
	msg := models.Message{
		ID:         m.ID,
		Username:   m.Sender,
		Text:       m.Text,
		Room:       m.RoomID,
		Kind:       m.Kind,
		StickerURL: m.StickerURL,
		FileURL:    m.FileURL,
		FileType:   m.FileType,
		SeenBy:     append([]string{}, m.SeenBy...),
		CreatedAt:  m.CreatedAt,
	}
	if m.SenderUserID != nil {
		msg.UserID = *m.SenderUserID
	}
	return msg
}

// contentKind picks exactly one kind for a request. Precedence when several
// flags are set: file, sticker, emoji, plain.
func contentKind(req SendMessageRequest) models.ContentKind {
	switch {
	case strings.TrimSpace(req.FileURL) != "":
		return models.KindFile
	case req.IsSticker && strings.TrimSpace(req.StickerURL) != "":
		return models.KindSticker
	case req.IsEmoji:
		return models.KindEmoji
	default:
		return models.KindPlain
	}
}

// buildEnvelope returns false for a request that carries nothing to show.
func buildEnvelope(id string, sender Session, req SendMessageRequest, now time.Time) (*MessageEnvelope, bool) {
	kind := contentKind(req)
	text := strings.TrimSpace(req.Text)
	if text == "" && kind != models.KindFile && kind != models.KindSticker {
		return nil, false
	}

	env := &MessageEnvelope{
		ID:        id,
		Text:      text,
		Sender:    sender.Username,
		RoomID:    scopeOf(req.RoomID),
		CreatedAt: now.UTC(),
		Kind:      kind,
		SeenBy:    []string{},
	}
	if !sender.IsGuest {
		userID := sender.UserID
		env.SenderUserID = &userID
	}
	switch kind {
	case models.KindFile:
		env.FileURL = strings.TrimSpace(req.FileURL)
		env.FileType = strings.TrimSpace(req.FileType)
	case models.KindSticker:
		env.StickerURL = strings.TrimSpace(req.StickerURL)
	}
	return env, true
}

// BuildMessage applies the socket content rules to a message saved through
// another path. It returns false when there is nothing to show.
func BuildMessage(id string, sender Identity, req SendMessageRequest, now time.Time) (models.Message, bool) {
	env, ok := buildEnvelope(id, Session{Identity: sender}, req, now)
	if !ok {
		return models.Message{}, false
	}
	return env.toModel(), true
}

// messageTable remembers recent envelopes for seen tracking. Oldest entries
// are evicted first once capacity is reached.
type messageTable struct {
	capacity int
	byID     map[string]*MessageEnvelope
	order    []string
}

// DefaultMessageCacheSize bounds the in-memory message table.
const DefaultMessageCacheSize = 10000

func newMessageTable(capacity int) *messageTable {
	if capacity <= 0 {
		capacity = DefaultMessageCacheSize
	}
	return &messageTable{capacity: capacity, byID: make(map[string]*MessageEnvelope)}
}

func (t *messageTable) put(m *MessageEnvelope) {
	if _, ok := t.byID[m.ID]; ok {
		t.byID[m.ID] = m
		return
	}
	t.byID[m.ID] = m
	t.order = append(t.order, m.ID)
	for len(t.order) > t.capacity {
		delete(t.byID, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *messageTable) get(id string) (*MessageEnvelope, bool) {
	m, ok := t.byID[id]
	return m, ok
}

func (t *messageTable) len() int {
	return len(t.order)
}
