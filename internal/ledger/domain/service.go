package domain

import (
	"context"
	"errors"
	"fmt"
)

type GrantRequest struct {
	UserID      string
	SeasonID    string
	Amount      int64
	SourceType  SourceType
	SourceID    string
	Description string
}

type GrantResult struct {
	TransactionID string
	XPGranted     int64
	PreviousLevel int
	UserLevel     UserLevel
}

// LeveledUp reports whether the grant moved the user to a higher level.
func (r GrantResult) LeveledUp() bool {
	return r.UserLevel.Level > r.PreviousLevel
}

type BonusRequest struct {
	UserID        string
	SeasonID      string
	AchievementID string
	Count         int
	PointsPerUnit int64
	Featured      bool
	Label         string
}

// Points is count * pointsPerUnit, doubled for featured missions.
func (r BonusRequest) Points() int64 {
	total := int64(r.Count) * r.PointsPerUnit
	if r.Featured {
		total *= 2
	}
	return total
}

// Description renders the ledger description for the bonus row.
func (r BonusRequest) Description() string {
	multiplier := ""
	if r.Featured {
		multiplier = "【2倍】"
	}
	return fmt.Sprintf("%s（%d枚=%dポイント%s）", r.Label, r.Count, r.Points(), multiplier)
}

// Consistency compares the cached level snapshot with the ledger.
type Consistency struct {
	UserID      string
	SeasonID    string
	LedgerSum   int64
	CachedXP    int64
	CachedLevel int
	Consistent  bool
}

type Service interface {
	// Grant appends one ledger row and moves the level snapshot by the same amount.
	Grant(ctx context.Context, req GrantRequest) (GrantResult, error)
	// GrantBatch applies every request in a single transaction.
	GrantBatch(ctx context.Context, reqs []GrantRequest) ([]UserLevel, error)
	// GrantBonus grants a BONUS row and returns the points credited.
	GrantBonus(ctx context.Context, req BonusRequest) (GrantResult, error)
	GetUserLevel(ctx context.Context, userID, seasonID string) (*UserLevel, error)
	// BonusForAchievement sums the BONUS rows recorded against an achievement.
	BonusForAchievement(ctx context.Context, userID, achievementID string) (int64, error)
	History(ctx context.Context, userID, seasonID string, limit int) ([]XpTransaction, error)
	// Rank is 1 + the number of users with strictly more XP in the season.
	Rank(ctx context.Context, userID, seasonID string) (int64, error)
	Verify(ctx context.Context, userID, seasonID string) (Consistency, error)
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidSeason     = errors.New("invalid_season")
	ErrInvalidSourceType = errors.New("invalid_source_type")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrLevelInitFailed   = errors.New("user_level_init_failed")
	ErrLevelUpdateFailed = errors.New("user_level_update_failed")
)

// User-facing sentences for level snapshot failures.
const (
	MessageLevelInitFailed   = "ユーザーレベルの初期化に失敗しました"
	MessageLevelUpdateFailed = "ユーザーレベルの更新に失敗しました"
)

// DefaultDescription is used when a grant carries no description.
func DefaultDescription(t SourceType) string {
	return fmt.Sprintf("%sによる経験値調整", t)
}
