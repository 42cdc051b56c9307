package chat

import (
	"encoding/json"
	"fmt"
)

// EventType names a frame on the chat socket.
type EventType string

const (
	// client -> server
	EventJoin           EventType = "join"
	EventGetOnlineUsers EventType = "getOnlineUsers"
	EventJoinRoom       EventType = "joinRoom"
	EventLeaveRoom      EventType = "leaveRoom"
	EventSendMessage    EventType = "sendMessage"
	EventTyping         EventType = "typing"
	EventMessageSeen    EventType = "messageSeen"

	// server -> client
	EventConnected      EventType = "connected"
	EventUserJoined     EventType = "userJoined"
	EventUserLeft       EventType = "userLeft"
	EventOnlineUsers    EventType = "onlineUsers"
	EventUserJoinedRoom EventType = "userJoinedRoom"
	EventUserLeftRoom   EventType = "userLeftRoom"
	EventMessage        EventType = "message"
	EventMessageStatus  EventType = "messageStatus"
	EventError          EventType = "error"
)

// Inbound reports whether clients may send t.
func (t EventType) Inbound() bool {
	switch t {
	case EventJoin, EventGetOnlineUsers, EventJoinRoom, EventLeaveRoom,
		EventSendMessage, EventTyping, EventMessageSeen:
		return true
	}
	return false
}

// Frame is an inbound frame as read off the socket.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParseFrame decodes a raw socket payload.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("frame without type")
	}
	return f, nil
}

func (f Frame) decode(v any) error {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil
	}
	return json.Unmarshal(f.Data, v)
}

// Event is an outbound frame. Data must not be mutated after the event is
// handed to a Conn.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	Text       string `json:"text"`
	RoomID     string `json:"roomId,omitempty"`
	IsEmoji    bool   `json:"isEmoji,omitempty"`
	IsSticker  bool   `json:"isSticker,omitempty"`
	StickerURL string `json:"stickerUrl,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileType   string `json:"fileType,omitempty"`
}

type TypingRequest struct {
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId,omitempty"`
}

type SeenRequest struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId,omitempty"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	IsGuest      bool   `json:"isGuest"`
}

type PresencePayload struct {
	User   string   `json:"user"`
	UserID string   `json:"userId,omitempty"`
	Users  []string `json:"users"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

type RoomPresencePayload struct {
	User   string `json:"user"`
	UserID string `json:"userId,omitempty"`
	RoomID string `json:"roomId"`
}

type TypingPayload struct {
	Users  []string `json:"users"`
	RoomID string   `json:"roomId"`
}

type MessageStatusPayload struct {
	MessageID string   `json:"messageId"`
	SeenBy    []string `json:"seenBy"`
	RoomID    string   `json:"roomId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeInvalidFrame = "invalid_frame"
	ErrCodeUnknownEvent = "unknown_event"
)
