package events

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
	fx.Invoke(startRelay),
)

type relayParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Outbox    *Outbox
	Log       *zap.Logger
	Metrics   *telemetry.Metrics `optional:"true"`
}

// startRelay dials RabbitMQ and drains the outbox when RABBITMQ_URL is set.
// Without it, events accumulate in event_outbox for an external relay.
func startRelay(p relayParams) error {
	if p.Config.RabbitMQURL == "" {
		p.Log.Info("outbox relay disabled; RABBITMQ_URL not set")
		return nil
	}

	var (
		conn   *amqp.Connection
		broker *rabbitMQBroker
		relay  *Relay
	)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			conn, err = amqp.Dial(p.Config.RabbitMQURL)
			if err != nil {
				return err
			}
			broker, err = NewRabbitMQBroker(conn, p.Config.RabbitMQExchange)
			if err != nil {
				_ = conn.Close()
				return err
			}
			relay = NewRelay(p.Outbox, broker, p.Log, p.Metrics, RelayConfig{
				Interval:  p.Config.RelayInterval,
				BatchSize: p.Config.RelayBatchSize,
			})
			relay.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if relay != nil {
				relay.Stop()
			}
			if broker != nil {
				_ = broker.Close()
			}
			if conn != nil {
				return conn.Close()
			}
			return nil
		},
	})
	return nil
}
