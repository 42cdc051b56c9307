package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduhub-chat/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestMessageRepoCreateMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	msg := models.Message{
		ID:        "m-1",
		Username:  "alice",
		UserID:    "u-1",
		Text:      "hello",
		Room:      "r-1",
		Kind:      models.KindPlain,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m-1", "alice", "u-1", "hello", "r-1", sqlmock.AnyArg(), "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateMessage(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoCreateMessageWrapsError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnError(boom)

	err := repo.CreateMessage(context.Background(), models.Message{ID: "m-2"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "m-2")
}

func TestMessageRepoListByRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"message_id", "username", "user_id", "text", "room", "kind", "sticker_url", "file_url", "file_type", "seen_by", "created_at"}).
		AddRow("m-1", "alice", "u-1", "first", "general", "plain", "", "", "", "{}", t0).
		AddRow("m-2", "bob", "u-2", "", "general", "sticker", "https://cdn/s.png", "", "", "{alice}", t0.Add(time.Minute))
	mock.ExpectQuery("SELECT (.+) FROM chat_messages").
		WithArgs("general", 50, 0).
		WillReturnRows(rows)

	msgs, err := repo.ListByRoom(context.Background(), "general", 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, models.KindSticker, msgs[1].Kind)
	assert.Equal(t, []string{"alice"}, []string(msgs[1].SeenBy))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoListByRoomEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM chat_messages").
		WithArgs("r-9", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"message_id"}))

	msgs, err := repo.ListByRoom(context.Background(), "r-9", 10, 20)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestMessageRepoMarkSeen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery("UPDATE chat_messages").
		WithArgs("m-1", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"seen_by"}).AddRow("{carol,bob}"))

	seen, err := repo.MarkSeen(context.Background(), "m-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob"}, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoMarkSeenNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery("UPDATE chat_messages").
		WithArgs("missing", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"seen_by"}))

	_, err := repo.MarkSeen(context.Background(), "missing", "bob")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
