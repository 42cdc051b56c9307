package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"eduhub-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `message_id, username, user_id, text, room, kind, sticker_url, file_url, file_type, seen_by, created_at`

// MessageRepository defines interactions for persisted chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) error
	ListByRoom(ctx context.Context, room string, limit, offset int) ([]models.Message, error)
	MarkSeen(ctx context.Context, messageID, username string) ([]string, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message under the id the coordinator assigned.
// Writing the same id twice is a no-op.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) error {
	if msg.SeenBy == nil {
		msg.SeenBy = pq.StringArray{}
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO chat_messages (`+messageColumns+`)
        VALUES (:message_id, :username, :user_id, :text, :room, :kind, :sticker_url, :file_url, :file_type, :seen_by, :created_at)
        ON CONFLICT (message_id) DO NOTHING`, msg)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// ListByRoom returns one page of a room's history, newest page first but
// ordered oldest to newest inside the page.
func (r *MessageRepo) ListByRoom(ctx context.Context, room string, limit, offset int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM chat_messages
            WHERE room=$1
            ORDER BY created_at DESC
            LIMIT $2 OFFSET $3
        ) page
        ORDER BY created_at ASC`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, room, limit, offset); err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", room, err)
	}
	return msgs, nil
}

// MarkSeen adds username to the message's seen list unless it is the sender
// or already there, and returns the resulting list.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID, username string) ([]string, error) {
	var seen pq.StringArray
	err := r.db.QueryRowxContext(ctx, `UPDATE chat_messages
        SET seen_by = CASE
            WHEN username = $2 OR $2 = ANY(seen_by) THEN seen_by
            ELSE array_append(seen_by, $2)
        END
        WHERE message_id=$1
        RETURNING seen_by`, messageID, username).Scan(&seen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark message %s seen: %w", messageID, err)
	}
	if seen == nil {
		return []string{}, nil
	}
	return []string(seen), nil
}
