package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/level"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type levelResponse struct {
	Success       bool    `json:"success"`
	SeasonID      string  `json:"season_id"`
	XP            int64   `json:"xp"`
	Level         int     `json:"level"`
	Rank          int64   `json:"rank"`
	XPToNextLevel int64   `json:"xp_to_next_level"`
	Progress      float64 `json:"progress"`
}

type transactionsResponse struct {
	Success      bool                         `json:"success"`
	SeasonID     string                       `json:"season_id"`
	Transactions []ledgerdomain.XpTransaction `json:"transactions"`
}

func (s *Server) GetMyLevel(c *gin.Context) {
	ctx := c.Request.Context()
	userID := userIDFrom(c)

	season, err := s.seasons.FindActive(ctx, s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if season == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	snapshot, err := s.ledgerSvc.GetUserLevel(ctx, userID, season.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res := levelResponse{Success: true, SeasonID: season.ID, Level: level.MinLevel}
	if snapshot != nil {
		res.XP = snapshot.XP
		res.Level = snapshot.Level
	}
	rank, err := s.ledgerSvc.Rank(ctx, userID, season.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	res.Rank = rank
	res.XPToNextLevel = level.XPToNextLevel(res.XP)
	res.Progress = level.Progress(res.XP)

	c.JSON(http.StatusOK, res)
}

func (s *Server) ListMyTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	season, err := s.seasons.FindActive(ctx, s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if season == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	rows, err := s.ledgerSvc.History(ctx, userIDFrom(c), season.ID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []ledgerdomain.XpTransaction{}
	}

	c.JSON(http.StatusOK, transactionsResponse{
		Success:      true,
		SeasonID:     season.ID,
		Transactions: rows,
	})
}
