package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitMQ_Publish(t *testing.T) {
	ch := &fakeChannel{}
	r := &RabbitMQ{channel: ch, exchange: "card_sync", logger: zap.NewNop()}

	err := r.Publish(context.Background(), KeyCardsUpdated, map[string]any{"productId": 4811})
	require.NoError(t, err)

	assert.Equal(t, "card_sync", ch.exchange)
	assert.Equal(t, KeyCardsUpdated, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var msg Message
	require.NoError(t, json.Unmarshal(ch.msg.Body, &msg))
	assert.Equal(t, KeyCardsUpdated, msg.Type)
	assert.JSONEq(t, `{"productId":4811}`, string(msg.Data))

	require.NoError(t, r.Close())
	assert.True(t, ch.closed)
}

func TestRabbitMQ_PublishError(t *testing.T) {
	r := &RabbitMQ{channel: &fakeChannel{err: errors.New("channel/connection is not open")}, exchange: "x", logger: zap.NewNop()}
	err := r.Publish(context.Background(), KeySyncCompleted, struct{}{})
	assert.ErrorContains(t, err, "publish sync.completed")
}

func TestEncode(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body, err := Encode(KeyImageProcess, map[string]string{"objectName": "cards/1/2.jpg"}, now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"images.process","timestamp":"2024-05-01T12:00:00Z","data":{"objectName":"cards/1/2.jpg"}}`, string(body))

	_, err = Encode(KeyImageProcess, func() {}, now)
	assert.Error(t, err)
}

func TestMemoryAndNop(t *testing.T) {
	ctx := context.Background()
	m := &Memory{}
	require.NoError(t, m.Publish(ctx, KeyCardsUpdated, 1))
	require.NoError(t, m.Publish(ctx, KeyPricesUpdated, 2))

	assert.Len(t, m.Messages(""), 2)
	assert.Len(t, m.Messages(KeyPricesUpdated), 1)

	p, err := New(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Publish(ctx, KeyCardsUpdated, 1))
	assert.NoError(t, p.Close())
}
