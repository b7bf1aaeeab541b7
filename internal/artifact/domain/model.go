package domain

import "time"

// MissionArtifact is the evidence submitted with an achievement.
// Outside of QUIZ at least one of LinkURL, TextContent, ImageStoragePath is set.
type MissionArtifact struct {
	ID               string       `gorm:"type:text;primaryKey"`
	AchievementID    string       `gorm:"type:text;not null;uniqueIndex"`
	UserID           string       `gorm:"type:text;not null;index"`
	ArtifactType     ArtifactType `gorm:"type:text;not null"`
	LinkURL          *string      `gorm:"type:text"`
	TextContent      *string      `gorm:"type:text"`
	ImageStoragePath *string      `gorm:"type:text"`
	Description      *string      `gorm:"type:text"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MissionArtifact) TableName() string { return "mission_artifacts" }

// ArtifactGeolocation stores where an IMAGE_WITH_GEOLOCATION photo was taken.
type ArtifactGeolocation struct {
	ID                string   `gorm:"type:text;primaryKey"`
	MissionArtifactID string   `gorm:"type:text;not null;index"`
	Lat               float64  `gorm:"not null"`
	Lon               float64  `gorm:"not null"`
	Accuracy          *float64 `gorm:"column:accuracy"`
	Altitude          *float64 `gorm:"column:altitude"`
}

func (ArtifactGeolocation) TableName() string { return "mission_artifact_geolocations" }

// PostingActivity records a flyer distribution run.
type PostingActivity struct {
	ID                string    `gorm:"type:text;primaryKey"`
	MissionArtifactID string    `gorm:"type:text;not null;index"`
	PostingCount      int       `gorm:"not null"`
	LocationText      string    `gorm:"type:text;not null"`
	ShapeID           *string   `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PostingActivity) TableName() string { return "posting_activities" }

// PosterActivity records a poster put up on a public board.
type PosterActivity struct {
	ID                string    `gorm:"type:text;primaryKey"`
	UserID            string    `gorm:"type:text;not null;index"`
	MissionArtifactID string    `gorm:"type:text;not null;index"`
	PosterCount       int       `gorm:"not null"`
	Prefecture        string    `gorm:"type:text;not null"`
	City              string    `gorm:"type:text;not null"`
	Number            string    `gorm:"type:text;not null"`
	Name              *string   `gorm:"type:text"`
	Note              *string   `gorm:"type:text"`
	Address           *string   `gorm:"type:text"`
	Lat               *float64  `gorm:"column:lat"`
	Long              *float64  `gorm:"column:long"`
	BoardID           *string   `gorm:"type:text;index"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PosterActivity) TableName() string { return "poster_activities" }
