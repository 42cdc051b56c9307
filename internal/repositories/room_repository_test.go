package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduhub-chat/internal/models"
)

var roomColumns = []string{"id", "name", "description", "is_private", "creator", "creator_id", "created_at", "members"}

func TestRoomRepoCreateRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chat_rooms").
		WithArgs("r-1", "Algebra", "study group", false, "alice", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectExec("INSERT INTO chat_room_members").
		WithArgs("r-1", "alice", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	room, err := repo.CreateRoom(context.Background(), models.ChatRoom{
		ID: "r-1", Name: "Algebra", Description: "study group", Creator: "alice", CreatorID: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, created, room.CreatedAt)
	assert.Equal(t, []string{"alice"}, []string(room.Members))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoCreateRoomDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chat_rooms").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	mock.ExpectRollback()

	_, err := repo.CreateRoom(context.Background(), models.ChatRoom{ID: "r-1", Name: "Algebra"})
	assert.ErrorIs(t, err, ErrRoomExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoListRooms(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM chat_rooms").
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(roomColumns).
			AddRow("r-2", "Physics", "", true, "bob", "u-2", now, "{bob}").
			AddRow("r-1", "Algebra", "", false, "alice", "u-1", now, "{alice,bob}"))

	rooms, err := repo.ListRooms(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.True(t, rooms[0].IsPrivate)
	assert.Equal(t, []string{"alice", "bob"}, []string(rooms[1].Members))
}

func TestRoomRepoGetRoomNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	mock.ExpectQuery("FROM chat_rooms").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(roomColumns))

	_, err := repo.GetRoom(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRepoAddMember(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		want    error
	}{
		{name: "ok"},
		{name: "duplicate", execErr: &pq.Error{Code: pqUniqueViolation}, want: ErrAlreadyMember},
		{name: "missing room", execErr: &pq.Error{Code: pqForeignKeyViolation}, want: ErrRoomNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewRoomRepo(db)

			exp := mock.ExpectExec("INSERT INTO chat_room_members").WithArgs("r-1", "bob", "u-2")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.AddMember(context.Background(), "r-1", "bob", "u-2")
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestRoomRepoRemoveMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	mock.ExpectExec("DELETE FROM chat_room_members").
		WithArgs("r-1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM chat_room_members").
		WithArgs("r-1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.RemoveMember(context.Background(), "r-1", "bob"))
	assert.ErrorIs(t, repo.RemoveMember(context.Background(), "r-1", "bob"), ErrNotMember)
}
