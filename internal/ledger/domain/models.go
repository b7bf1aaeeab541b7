package domain

import "time"

// SourceType tags what produced an XP ledger row.
type SourceType string

const (
	SourceTypeMissionCompletion   SourceType = "MISSION_COMPLETION"
	SourceTypeBonus               SourceType = "BONUS"
	SourceTypeMissionCancellation SourceType = "MISSION_CANCELLATION"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeMissionCompletion, SourceTypeBonus, SourceTypeMissionCancellation:
		return true
	default:
		return false
	}
}

// XpTransaction is an append-only ledger row. Rows are never updated or deleted.
type XpTransaction struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	UserID      string     `gorm:"type:text;not null;index:ix_xp_transactions_user_season,priority:1" json:"user_id"`
	SeasonID    string     `gorm:"type:text;not null;index:ix_xp_transactions_user_season,priority:2" json:"season_id"`
	XpAmount    int64      `gorm:"not null" json:"xp_amount"`
	SourceType  SourceType `gorm:"type:text;not null" json:"source_type"`
	SourceID    *string    `gorm:"type:text;index" json:"source_id,omitempty"`
	Description string     `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (XpTransaction) TableName() string { return "xp_transactions" }

// UserLevel caches the XP sum and derived level for one user in one season.
type UserLevel struct {
	UserID    string    `gorm:"type:text;primaryKey" json:"user_id"`
	SeasonID  string    `gorm:"type:text;primaryKey" json:"season_id"`
	XP        int64     `gorm:"column:xp;not null;default:0" json:"xp"`
	Level     int       `gorm:"not null;default:1" json:"level"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (UserLevel) TableName() string { return "user_levels" }
