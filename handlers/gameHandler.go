package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"partyserver/live"
	"partyserver/middlewares"
	"partyserver/models"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// GameService は抽選まわりの操作です。selection.Engine が実装します。
type GameService interface {
	SelectNext(ctx context.Context, gameID uint) (*models.Round, error)
	RoundForChallenge(ctx context.Context, gameID, challengeID uint) (*models.Round, error)
	Tenant(ctx context.Context, gameID uint) (*models.Game, error)
	Players(ctx context.Context, gameID uint) ([]models.User, error)
	PlayerChallenges(ctx context.Context, gameID, userID uint) ([]models.Challenge, error)
	UsedRandomNumbers(ctx context.Context, gameID uint) ([]int, error)
	RecordRandomNumbers(ctx context.Context, gameID uint, numbers []int, resetRangeMax int) ([]int, error)
	PreviewRandomNumbers(ctx context.Context, gameID uint, maxValue, count int) (*models.PendingDraw, error)
	CommitRandomNumbers(ctx context.Context, gameID uint, drawID string) ([]int, error)
	DiscardRandomNumbers(ctx context.Context, gameID uint, drawID string) error
}

// Broadcaster は同じゲームの画面へ通知を送ります。live.Hub が実装します。
type Broadcaster interface {
	Broadcast(gameID uint, msgType string, payload interface{})
}

func broadcast(b Broadcaster, gameID uint, msgType string, payload interface{}) {
	if b != nil {
		b.Broadcast(gameID, msgType, payload)
	}
}

// RandomRound は次のプレイヤーとお題を抽選します。
func RandomRound(c *gin.Context, svc GameService, hub Broadcaster, logger *zap.Logger) {
	claims := middlewares.Claims(c)
	round, err := svc.SelectNext(c.Request.Context(), claims.GameID)
	if err != nil {
		logger.Warn("Random selection failed", zap.Uint("gameID", claims.GameID), zap.Error(err))
		respondSelectionError(c, err, logger)
		return
	}
	broadcast(hub, claims.GameID, "round", round)
	c.JSON(http.StatusOK, round)
}

// ChallengeRound は手動で選んだお題のラウンドを返します。
func ChallengeRound(c *gin.Context, svc GameService, hub Broadcaster, logger *zap.Logger) {
	challengeID, ok := paramID(c, "challengeId")
	if !ok {
		return
	}
	claims := middlewares.Claims(c)
	round, err := svc.RoundForChallenge(c.Request.Context(), claims.GameID, challengeID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	broadcast(hub, claims.GameID, "round", round)
	c.JSON(http.StatusOK, round)
}

func CurrentGame(c *gin.Context, svc GameService, logger *zap.Logger) {
	game, err := svc.Tenant(c.Request.Context(), middlewares.Claims(c).GameID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, game)
}

func GameUsers(c *gin.Context, svc GameService, logger *zap.Logger) {
	users, err := svc.Players(c.Request.Context(), middlewares.Claims(c).GameID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	out := make([]models.Victim, len(users))
	for i, u := range users {
		out[i] = models.Victim{ID: u.ID, Username: u.Username}
	}
	c.JSON(http.StatusOK, out)
}

func UserChallenges(c *gin.Context, svc GameService, logger *zap.Logger) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	challenges, err := svc.PlayerChallenges(c.Request.Context(), middlewares.Claims(c).GameID, userID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	if challenges == nil {
		challenges = []models.Challenge{}
	}
	c.JSON(http.StatusOK, challenges)
}

func UsedRandomNumbers(c *gin.Context, svc GameService, logger *zap.Logger) {
	used, err := svc.UsedRandomNumbers(c.Request.Context(), middlewares.Claims(c).GameID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usedRandomNumbers": used})
}

// RecordRandomNumbers は乱数を即座に使用済みにします。
func RecordRandomNumbers(c *gin.Context, svc GameService, hub Broadcaster, logger *zap.Logger) {
	var req models.RecordNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Numbers == nil {
		badRequest(c, "numbers is required")
		return
	}
	if req.ResetRangeMax < 0 {
		badRequest(c, "resetRangeMax must not be negative")
		return
	}
	claims := middlewares.Claims(c)
	used, err := svc.RecordRandomNumbers(c.Request.Context(), claims.GameID, req.Numbers, req.ResetRangeMax)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	broadcast(hub, claims.GameID, "randomNumbers", gin.H{"usedRandomNumbers": used})
	c.JSON(http.StatusOK, gin.H{"usedRandomNumbers": used})
}

func PreviewRandomNumbers(c *gin.Context, svc GameService, logger *zap.Logger) {
	var req models.PreviewNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "maxValue and count are required")
		return
	}
	draw, err := svc.PreviewRandomNumbers(c.Request.Context(), middlewares.Claims(c).GameID, req.MaxValue, req.Count)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, draw)
}

func CommitRandomNumbers(c *gin.Context, svc GameService, hub Broadcaster, logger *zap.Logger) {
	var req models.CommitNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "drawId is required")
		return
	}
	claims := middlewares.Claims(c)
	used, err := svc.CommitRandomNumbers(c.Request.Context(), claims.GameID, req.DrawID)
	if err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	broadcast(hub, claims.GameID, "randomNumbers", gin.H{"usedRandomNumbers": used})
	c.JSON(http.StatusOK, gin.H{"usedRandomNumbers": used})
}

func DiscardRandomNumbers(c *gin.Context, svc GameService, logger *zap.Logger) {
	var req models.CommitNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "drawId is required")
		return
	}
	if err := svc.DiscardRandomNumbers(c.Request.Context(), middlewares.Claims(c).GameID, req.DrawID); err != nil {
		respondSelectionError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Draw discarded"})
}

// InviteQR は家族の招待リンクをQRコード(PNG)で返します。
func InviteQR(c *gin.Context, baseURL string, logger *zap.Logger) {
	url := fmt.Sprintf("%s/join/%d", strings.TrimSuffix(baseURL, "/"), middlewares.Claims(c).GameID)

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		logger.Error("QR generation failed", zap.Error(err))
		serverError(c)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// LiveConnection はゲームの画面をWebSocketでハブに繋ぎます。
func LiveConnection(c *gin.Context, hub *live.Hub) {
	claims := middlewares.Claims(c)
	hub.HandleConnection(c.Writer, c.Request, claims.GameID, claims.UserID)
}
