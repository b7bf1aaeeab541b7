package events

const (
	EventAchievementCreated   = "achievement.created"
	EventAchievementCancelled = "achievement.cancelled"
	EventUserLevelChanged     = "user_level.changed"
)

// Event is a domain event waiting to be written to the outbox.
type Event struct {
	Type        string
	AggregateID string
	Payload     map[string]any
	// DedupeKey makes repeated publishes of the same fact a no-op.
	DedupeKey string
}
