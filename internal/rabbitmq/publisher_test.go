package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "chat.events", zap.NewNop())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), "audit.chat", map[string]string{"a": "b"}, nil))
	require.NoError(t, p.Close())
}

func TestToTable(t *testing.T) {
	assert.Nil(t, toTable(nil))
	assert.Equal(t, amqp.Table{"trace_id": "abc"}, toTable(map[string]string{"trace_id": "abc"}))
}
