package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"partyserver/models"
	"partyserver/selection"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondSelectionError はエンジンのエラーをHTTPレスポンスに変換します。
func respondSelectionError(c *gin.Context, err error, logger *zap.Logger) {
	var noChallenges *selection.NoChallengesError
	switch {
	case errors.As(err, &noChallenges):
		c.JSON(http.StatusBadRequest, gin.H{
			"msg":    noChallenges.Error(),
			"code":   models.CodeNoChallengesForUser,
			"victim": models.Victim{ID: noChallenges.PlayerID, Username: noChallenges.Username},
		})
	case errors.Is(err, selection.ErrNoPlayers):
		c.JSON(http.StatusBadRequest, gin.H{"msg": "No users found in this game", "code": models.CodeNoPlayers})
	case errors.Is(err, selection.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "Game not found", "code": models.CodeNotFound})
	case errors.Is(err, selection.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "Challenge not found", "code": models.CodeNotFound})
	case errors.Is(err, selection.ErrPlayerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "User not found", "code": models.CodeNotFound})
	case errors.Is(err, selection.ErrInvalidDraw):
		c.JSON(http.StatusBadRequest, gin.H{"msg": "count must be between 1 and maxValue", "code": models.CodeInvalidDraw})
	case errors.Is(err, selection.ErrDrawNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "Draw not found or expired", "code": models.CodeDrawNotFound})
	case errors.Is(err, selection.ErrDrawsUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "Random number previews are unavailable", "code": models.CodeDrawsUnavailable})
	case errors.Is(err, selection.ErrConcurrencyExhausted):
		logger.Error("Selection retries exhausted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "Database concurrency error", "code": models.CodeConcurrencyExhausted})
	default:
		logger.Error("Selection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server error", "code": models.CodeServerError})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg, "code": models.CodeBadRequest})
}

func serverError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server error", "code": models.CodeServerError})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"msg": msg, "code": models.CodeNotFound})
}

// paramID はURLパラメータを uint として読み取ります。失敗時は400を返して false
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
