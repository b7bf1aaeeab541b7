package events

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxEvent is a row of event_outbox awaiting relay to the broker.
type OutboxEvent struct {
	ID          string            `gorm:"type:text;primaryKey"`
	EventType   string            `gorm:"type:text;not null"`
	AggregateID string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex"`
	PublishedAt *time.Time        `gorm:"index"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OutboxEvent) TableName() string { return "event_outbox" }
