package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRabbitMQRelayDeliversOutbox(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server startup complete")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	const exchange = "actionboard.events.test"
	broker, err := NewRabbitMQBroker(conn, exchange)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "achievement.*", exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	_, outbox, _ := newTestOutbox(t)
	require.NoError(t, outbox.Publish(ctx, Event{
		Type:        EventAchievementCreated,
		AggregateID: "ach-1",
		Payload:     map[string]any{"mission_id": "mission-1"},
	}))
	require.NoError(t, outbox.Publish(ctx, Event{Type: EventUserLevelChanged, AggregateID: "user-1"}))

	relay := NewRelay(outbox, broker, zap.NewNop(), nil, RelayConfig{})
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	select {
	case d := <-deliveries:
		assert.Equal(t, EventAchievementCreated, d.RoutingKey)
		var msg Message
		require.NoError(t, json.Unmarshal(d.Body, &msg))
		assert.Equal(t, "ach-1", msg.AggregateID)
		assert.Equal(t, "mission-1", msg.Payload["mission_id"])
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery from exchange")
	}

	// user_level.changed is not bound to the queue.
	select {
	case d := <-deliveries:
		t.Fatalf("unexpected delivery %s", d.RoutingKey)
	case <-time.After(500 * time.Millisecond):
	}
}
