package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMQ(t *testing.T) {
	q, err := NewInMemoryMQ(2)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "generations", []byte("one")))
	require.NoError(t, q.Publish(ctx, "generations", []byte("two")))

	// A full topic evicts its oldest message instead of refusing the new one.
	require.NoError(t, q.Publish(ctx, "generations", []byte("three")))

	msg, err := q.Receive(ctx, "generations")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), msg.Data)
	assert.NoError(t, msg.Ack())

	msg, err = q.Receive(ctx, "generations")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), msg.Data)

	require.NoError(t, q.CloseTopic("generations"))
	_, err = q.Receive(ctx, "generations")
	assert.ErrorIs(t, err, ErrTopicClosed)

	assert.ErrorIs(t, q.CloseTopic("missing"), ErrTopicNotExists)

	require.NoError(t, q.Close())
	_, err = q.Receive(ctx, "other")
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestInMemoryMQPublishWithoutConsumer(t *testing.T) {
	q, err := NewInMemoryMQ(4)
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Publish(ctx, "generations", []byte{byte(i)}))
	}

	msg, err := q.Receive(ctx, "generations")
	require.NoError(t, err)
	assert.Equal(t, []byte{96}, msg.Data, "only the newest messages survive")
}
