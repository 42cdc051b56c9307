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

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomExists    = errors.New("room already exists")
	ErrAlreadyMember = errors.New("already a member of the room")
	ErrNotMember     = errors.New("not a member of the room")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const roomSelect = `SELECT r.id, r.name, r.description, r.is_private, r.creator, r.creator_id, r.created_at,
            COALESCE(array_agg(m.username ORDER BY m.joined_at) FILTER (WHERE m.username IS NOT NULL), '{}') AS members
        FROM chat_rooms r
        LEFT JOIN chat_room_members m ON m.room_id = r.id`

// RoomRepository abstracts persisted room metadata and rosters.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error)
	ListRooms(ctx context.Context, username string) ([]models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	AddMember(ctx context.Context, roomID, username, userID string) error
	RemoveMember(ctx context.Context, roomID, username string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom creates a room with its creator as first member atomically.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.ChatRoom) (created models.ChatRoom, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO chat_rooms (id, name, description, is_private, creator, creator_id)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		room.ID, room.Name, room.Description, room.IsPrivate, room.Creator, room.CreatorID).Scan(&room.CreatedAt); err != nil {
		if isPQCode(err, pqUniqueViolation) {
			err = ErrRoomExists
		}
		return models.ChatRoom{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_room_members (room_id, username, user_id) VALUES ($1, $2, $3)`,
		room.ID, room.Creator, room.CreatorID); err != nil {
		return models.ChatRoom{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ChatRoom{}, err
	}
	room.Members = pq.StringArray{room.Creator}
	return room, nil
}

// ListRooms returns public rooms plus private rooms username belongs to.
func (r *RoomRepo) ListRooms(ctx context.Context, username string) ([]models.ChatRoom, error) {
	query := roomSelect + `
        WHERE r.is_private = FALSE
           OR EXISTS (SELECT 1 FROM chat_room_members pm WHERE pm.room_id = r.id AND pm.username = $1)
        GROUP BY r.id
        ORDER BY r.created_at DESC`
	rooms := []models.ChatRoom{}
	if err := r.db.SelectContext(ctx, &rooms, query, username); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom fetches a single room with its roster.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, roomSelect+`
        WHERE r.id=$1
        GROUP BY r.id`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// AddMember enrolls username in the room roster.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, username, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_room_members (room_id, username, user_id) VALUES ($1, $2, $3)`,
		roomID, username, userID)
	switch {
	case isPQCode(err, pqUniqueViolation):
		return ErrAlreadyMember
	case isPQCode(err, pqForeignKeyViolation):
		return ErrRoomNotFound
	}
	return err
}

// RemoveMember drops username from the room roster.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_room_members WHERE room_id=$1 AND username=$2`, roomID, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotMember
	}
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
