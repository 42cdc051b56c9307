package models

import (
	"time"

	"github.com/lib/pq"
)

// ChatRoom is the persisted metadata of a named room. Live membership is
// tracked by the chat coordinator; Members here is the durable roster.
type ChatRoom struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	IsPrivate   bool           `db:"is_private" json:"isPrivate"`
	Creator     string         `db:"creator" json:"creator"`
	CreatorID   string         `db:"creator_id" json:"creatorId"`
	Members     pq.StringArray `db:"members" json:"members"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}
