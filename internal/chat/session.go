package chat

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeneralRoom is the reserved scope every connection belongs to.
const GeneralRoom = "general"

// Identity is who a connection speaks as.
type Identity struct {
	UserID   string
	Username string
	IsGuest  bool
}

// Session binds one live connection to an identity.
type Session struct {
	ConnectionID string
	Identity
	ConnectedAt time.Time
}

// Conn is the write side of one client connection. Send must not block;
// it reports false when the frame was dropped.
type Conn interface {
	Send(Event) bool
}

type attachment struct {
	session Session
	conn    Conn
}

// scopeOf maps a client supplied room id to a typing/broadcast scope.
// Empty and "general" both mean the global audience.
func scopeOf(roomID string) string {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || roomID == GeneralRoom {
		return GeneralRoom
	}
	return roomID
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
