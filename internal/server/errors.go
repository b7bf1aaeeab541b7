package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrNotFound       = errors.New("not_found")
)

const (
	messageInvalidRequest = "リクエストの形式が正しくありません。"
	messageRateLimited    = "リクエストが多すぎます。しばらくしてから再度お試しください。"
	messageInternal       = "サーバーエラーが発生しました。"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ErrorHandlingMiddleware renders the last handler error as the failure body.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	var domainErr *achievementdomain.Error
	if errors.As(err, &domainErr) {
		return statusForDomain(domainErr), errorResponse{
			Error: domainErr.Message,
			Kind:  string(domainErr.Kind),
		}
	}

	var fieldErr *artifactdomain.ValidationError
	if errors.As(err, &fieldErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Error: fieldErr.Message,
			Kind:  string(achievementdomain.KindValidation),
			Field: fieldErr.Field,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, artifactdomain.ErrInvalidArtifactType),
		errors.Is(err, ledgerdomain.ErrInvalidUser):
		return http.StatusBadRequest, errorResponse{Error: messageInvalidRequest}
	case errors.Is(err, achievementdomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: achievementdomain.MessageUnauthenticated}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: messageRateLimited}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, achievementdomain.ErrNoActiveSeason):
		return http.StatusNotFound, errorResponse{Error: achievementdomain.MessageSeasonNotFound}
	default:
		return http.StatusInternalServerError, errorResponse{Error: messageInternal}
	}
}

func statusForDomain(err *achievementdomain.Error) int {
	switch {
	case errors.Is(err, achievementdomain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, achievementdomain.ErrMissionNotFound),
		errors.Is(err, achievementdomain.ErrAchievementNotFound):
		return http.StatusNotFound
	}

	switch err.Kind {
	case achievementdomain.KindValidation:
		return http.StatusUnprocessableEntity
	case achievementdomain.KindEligibility:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// classifyErrorForLog keeps user-facing text out of the request log.
func classifyErrorForLog(err error) (string, string) {
	var domainErr *achievementdomain.Error
	if errors.As(err, &domainErr) {
		code := "unknown"
		if inner := errors.Unwrap(domainErr); inner != nil {
			code = sentinelCode(inner)
		}
		return string(domainErr.Kind), code
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limit", ErrRateLimited.Error()
	case errors.Is(err, ErrInvalidRequest):
		return "request", ErrInvalidRequest.Error()
	case errors.Is(err, artifactdomain.ErrInvalidSubmission):
		return "validation", artifactdomain.ErrInvalidSubmission.Error()
	default:
		return "internal", "internal_error"
	}
}

// sentinelCode unwraps joined errors down to the first sentinel.
func sentinelCode(err error) string {
	for _, sentinel := range []error{
		achievementdomain.ErrUnauthenticated,
		achievementdomain.ErrMissionNotFound,
		achievementdomain.ErrArtifactTypeMismatch,
		achievementdomain.ErrAchievementLimitReached,
		achievementdomain.ErrDuplicateLink,
		achievementdomain.ErrDuplicateProvider,
		achievementdomain.ErrNoActiveSeason,
		achievementdomain.ErrAchievementNotFound,
		achievementdomain.ErrSubmissionInProgress,
		achievementdomain.ErrPartialCancellation,
		achievementdomain.ErrStorage,
		artifactdomain.ErrInvalidSubmission,
		artifactdomain.ErrEmptyPayload,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "unknown"
}
