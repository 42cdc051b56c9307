package models

import (
	"time"

	"github.com/lib/pq"
)

// ContentKind is what a chat message carries besides its text.
type ContentKind string

const (
	KindPlain   ContentKind = "plain"
	KindEmoji   ContentKind = "emoji"
	KindSticker ContentKind = "sticker"
	KindFile    ContentKind = "file"
)

// Message is the persisted projection of a chat message.
type Message struct {
	ID         string         `db:"message_id" json:"messageId"`
	Username   string         `db:"username" json:"username"`
	UserID     string         `db:"user_id" json:"userId"`
	Text       string         `db:"text" json:"text"`
	Room       string         `db:"room" json:"room"`
	Kind       ContentKind    `db:"kind" json:"kind"`
	StickerURL string         `db:"sticker_url" json:"stickerUrl,omitempty"`
	FileURL    string         `db:"file_url" json:"fileUrl,omitempty"`
	FileType   string         `db:"file_type" json:"fileType,omitempty"`
	SeenBy     pq.StringArray `db:"seen_by" json:"seenBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
