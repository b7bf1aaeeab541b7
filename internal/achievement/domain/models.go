package domain

import "time"

// Achievement records that a user completed a mission once.
type Achievement struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:ix_achievements_user_mission,priority:1" json:"user_id"`
	MissionID string    `gorm:"type:text;not null;index:ix_achievements_user_mission,priority:2" json:"mission_id"`
	SeasonID  string    `gorm:"type:text;not null" json:"season_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Achievement) TableName() string { return "achievements" }
