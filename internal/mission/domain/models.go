package domain

import (
	"time"

	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
)

// Mission is a catalog entry. It is maintained by admin flows and read-only here.
type Mission struct {
	ID                   string                      `gorm:"type:text;primaryKey" json:"id"`
	Slug                 string                      `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Title                string                      `gorm:"type:text;not null" json:"title"`
	Difficulty           int                         `gorm:"not null" json:"difficulty"`
	RequiredArtifactType artifactdomain.ArtifactType `gorm:"type:text;not null" json:"required_artifact_type"`
	MaxAchievementCount  *int                        `json:"max_achievement_count,omitempty"`
	IsFeatured           bool                        `gorm:"not null;default:false" json:"is_featured"`
	CreatedAt            time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Mission) TableName() string { return "missions" }

// CapReached reports whether count achievements already exhaust the mission cap.
func (m Mission) CapReached(count int64) bool {
	return m.MaxAchievementCount != nil && count >= int64(*m.MaxAchievementCount)
}
