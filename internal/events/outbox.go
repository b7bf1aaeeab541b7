package events

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/actionboard/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidEvent = errors.New("invalid_event")

type OutboxParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
}

// Outbox stores events in the same database as the state they describe.
type Outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewOutbox(p OutboxParams) *Outbox {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Outbox{
		db:      p.DB,
		log:     p.Log.Named("events.outbox"),
		clock:   c,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Publish writes ev outside of any caller transaction.
func (o *Outbox) Publish(ctx context.Context, ev Event) error {
	return o.PublishTx(ctx, o.db, ev)
}

// PublishTx writes ev with tx so it commits or rolls back with the caller's writes.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, ev Event) error {
	eventType := strings.TrimSpace(ev.Type)
	if eventType == "" {
		return ErrInvalidEvent
	}

	payload := datatypes.JSONMap{}
	for k, v := range ev.Payload {
		payload[k] = v
	}

	now := o.clock.Now()
	row := OutboxEvent{
		ID:          o.newID(now),
		EventType:   eventType,
		AggregateID: ev.AggregateID,
		Payload:     payload,
		CreatedAt:   now,
	}
	if key := strings.TrimSpace(ev.DedupeKey); key != "" {
		row.DedupeKey = &key
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(&row).Error
}

// Pending returns unpublished events oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []OutboxEvent
	err := o.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *Outbox) Backlog(ctx context.Context) (int64, error) {
	var count int64
	err := o.db.WithContext(ctx).Model(&OutboxEvent{}).Where("published_at IS NULL").Count(&count).Error
	return count, err
}

func (o *Outbox) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return o.db.WithContext(ctx).Exec(
		`UPDATE event_outbox SET published_at = ? WHERE id IN ? AND published_at IS NULL`,
		o.clock.Now(),
		ids,
	).Error
}

func (o *Outbox) newID(now time.Time) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), o.entropy).String()
}
