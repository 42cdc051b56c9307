package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// OnlineListerMock stands in for the live coordinator in handler tests.
type OnlineListerMock struct {
	mock.Mock
}

func (m *OnlineListerMock) OnlineUsers() ([]string, error) {
	args := m.Called()
	var users []string
	if val := args.Get(0); val != nil {
		users = val.([]string)
	}
	return users, args.Error(1)
}
