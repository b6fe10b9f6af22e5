package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/model"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisherWithChannel(ch, "order_events")
	event := model.NewOrderEvent(model.EventOrderCreated, model.Order{ID: 100, ItemCount: 3, Status: model.StatusPending}, time.Now())

	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "order_events", sent.exchange)
	assert.Empty(t, sent.key)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, "order.created", sent.msg.Type)
	assert.Equal(t, event.EventID.String(), sent.msg.MessageId)

	var decoded model.OrderEvent
	require.NoError(t, json.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, 3, decoded.ItemCount)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
