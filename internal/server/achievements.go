package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
)

type achieveRequest struct {
	ArtifactType        string          `json:"artifact_type"`
	Artifact            json.RawMessage `json:"artifact"`
	ArtifactDescription string          `json:"artifact_description"`
	ShapeID             string          `json:"shape_id"`
	BoardID             string          `json:"board_id"`
}

type achieveResponse struct {
	Success              bool                    `json:"success"`
	Message              string                  `json:"message"`
	XPGranted            int64                   `json:"xp_granted"`
	UserLevel            *ledgerdomain.UserLevel `json:"user_level,omitempty"`
	ArtifactID           string                  `json:"artifact_id,omitempty"`
	FirstBoardCompletion bool                    `json:"first_board_completion,omitempty"`
}

type cancelResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	XPRevoked int64                   `json:"xp_revoked"`
	UserLevel *ledgerdomain.UserLevel `json:"user_level,omitempty"`
}

func (s *Server) AchieveMission(c *gin.Context) {
	var req achieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var (
		artifactType artifactdomain.ArtifactType
		submission   artifactdomain.Submission
	)
	if raw := strings.TrimSpace(req.ArtifactType); raw != "" {
		t, ok := artifactdomain.ParseArtifactType(raw)
		if !ok {
			AbortWithError(c, artifactdomain.ErrInvalidArtifactType)
			return
		}
		artifactType = t
		c.Set("artifact_type", string(t))

		// A missing artifact is left to the service, which fills in the
		// empty submission for types without fields and rejects the rest.
		if hasArtifact(req.Artifact) {
			sub, err := artifactdomain.DecodeSubmission(t, req.Artifact)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			submission = sub
		}
	}

	res, err := s.achievementSvc.Achieve(c.Request.Context(), achievementdomain.AchieveRequest{
		UserID:              userIDFrom(c),
		MissionID:           c.Param("missionID"),
		ArtifactType:        artifactType,
		Submission:          submission,
		ArtifactDescription: req.ArtifactDescription,
		ShapeID:             req.ShapeID,
		BoardID:             req.BoardID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, achieveResponse{
		Success:              true,
		Message:              res.Message,
		XPGranted:            res.XPGranted,
		UserLevel:            res.UserLevel,
		ArtifactID:           res.ArtifactID,
		FirstBoardCompletion: res.FirstBoardCompletion,
	})
}

func (s *Server) CancelAchievement(c *gin.Context) {
	res, err := s.achievementSvc.Cancel(c.Request.Context(), achievementdomain.CancelRequest{
		UserID:        userIDFrom(c),
		AchievementID: c.Param("achievementID"),
		MissionID:     c.Param("missionID"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cancelResponse{
		Success:   true,
		Message:   res.Message,
		XPRevoked: res.XPRevoked,
		UserLevel: res.UserLevel,
	})
}

func hasArtifact(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}
