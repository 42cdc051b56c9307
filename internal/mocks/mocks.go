package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"eduhub-chat/internal/models"
	"eduhub-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListByRoom(ctx context.Context, room string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, room, limit, offset)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, messageID, username string) ([]string, error) {
	args := m.Called(ctx, messageID, username)
	var seen []string
	if val := args.Get(0); val != nil {
		seen = val.([]string)
	}
	return seen, args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	args := m.Called(ctx, room)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) ListRooms(ctx context.Context, username string) ([]models.ChatRoom, error) {
	args := m.Called(ctx, username)
	var list []models.ChatRoom
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatRoom)
	}
	return list, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID, username, userID string) error {
	args := m.Called(ctx, roomID, username, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID, username string) error {
	args := m.Called(ctx, roomID, username)
	return args.Error(0)
}

var (
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.RoomRepository    = (*RoomRepositoryMock)(nil)
)
