package events

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/actionboard/pkg/telemetry"
	"go.uber.org/zap"
)

type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay drains the outbox into the broker. Delivery is at least once;
// consumers dedupe on the message id.
type Relay struct {
	outbox  *Outbox
	broker  Broker
	log     *zap.Logger
	metrics *telemetry.Metrics
	cfg     RelayConfig

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewRelay(outbox *Outbox, broker Broker, log *zap.Logger, metrics *telemetry.Metrics, cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		outbox:  outbox,
		broker:  broker,
		log:     log.Named("events.relay"),
		metrics: metrics,
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
}

// RunOnce publishes one batch and returns how many events were delivered.
// Delivery stops at the first broker error so ordering is kept.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	rows, err := r.outbox.Pending(ctx, r.cfg.BatchSize)
	if err != nil {
		r.metrics.RecordOutboxBatch("error", 0, time.Since(start))
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	delivered := make([]string, 0, len(rows))
	var publishErr error
	for _, row := range rows {
		msg := Message{
			ID:          row.ID,
			Type:        row.EventType,
			AggregateID: row.AggregateID,
			Payload:     row.Payload,
			OccurredAt:  row.CreatedAt,
		}
		if publishErr = r.broker.Publish(ctx, msg); publishErr != nil {
			r.log.Warn("failed to publish outbox event",
				zap.String("event_id", row.ID),
				zap.String("event_type", row.EventType),
				zap.Error(publishErr),
			)
			break
		}
		delivered = append(delivered, row.ID)
	}

	if err := r.outbox.MarkPublished(ctx, delivered); err != nil {
		r.metrics.RecordOutboxBatch("error", len(delivered), time.Since(start))
		return 0, err
	}

	status := "success"
	if publishErr != nil {
		status = "partial"
	}
	r.metrics.RecordOutboxBatch(status, len(delivered), time.Since(start))
	if backlog, err := r.outbox.Backlog(ctx); err == nil {
		r.metrics.SetOutboxBacklog(float64(backlog))
	}
	return len(delivered), publishErr
}

func (r *Relay) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Interval*5)
				if _, err := r.RunOnce(ctx); err != nil {
					r.log.Warn("outbox relay batch failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
	r.log.Info("outbox relay started", zap.Duration("interval", r.cfg.Interval))
}

func (r *Relay) Stop() {
	close(r.stop)
	r.wg.Wait()
}
