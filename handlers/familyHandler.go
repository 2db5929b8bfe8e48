package handlers

import (
	"context"
	"errors"
	"net/http"

	"partyserver/auth"
	"partyserver/database"
	"partyserver/middlewares"
	"partyserver/models"
	"partyserver/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validationError はクライアントに400で返す入力エラーです。
type validationError string

func (e validationError) Error() string { return string(e) }

// applyGameUpdate はゲーム設定の更新内容を検証して game に反映します。
func applyGameUpdate(db *gorm.DB, game *models.Game, req models.GameUpdateRequest) error {
	if req.Name != "" && req.Name != game.Name {
		var count int64
		if err := db.Model(&models.Game{}).Where("name = ? AND id <> ?", req.Name, game.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return validationError("Game name already exists")
		}
		game.Name = req.Name
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return err
		}
		game.PasswordHash = hash
	}

	cfg := game.Config
	if req.MinTime != nil {
		cfg.MinIntervalSeconds = *req.MinTime
	}
	if req.MaxTime != nil {
		cfg.MaxIntervalSeconds = *req.MaxTime
	}
	if req.DefaultParticipants != nil {
		cfg.DefaultParticipants = *req.DefaultParticipants
	}
	if cfg.MinIntervalSeconds < models.MinimumMinIntervalSeconds {
		return validationError("minTime must be at least 60 seconds")
	}
	if cfg.MaxIntervalSeconds < cfg.MinIntervalSeconds {
		return validationError("maxTime must be greater than or equal to minTime")
	}
	if cfg.DefaultParticipants < 1 {
		return validationError("defaultParticipants must be at least 1")
	}
	game.Config = cfg
	return nil
}

// saveGameSettings は履歴と version に触れずに設定だけを保存します。
func saveGameSettings(db *gorm.DB, game *models.Game) error {
	return db.Model(game).Select("name", "password_hash", "min_interval_seconds", "max_interval_seconds", "default_participants").
		Updates(game).Error
}

func removeFiles(ctx context.Context, files storage.Storage, keys []string, logger *zap.Logger) {
	for _, key := range keys {
		if err := files.Delete(ctx, key); err != nil {
			logger.Warn("Failed to delete stored file", zap.String("key", key), zap.Error(err))
		}
	}
}

func FamilyUsers(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var users []models.User
	if err := db.Where("game_id = ?", middlewares.Claims(c).GameID).Order("id").Find(&users).Error; err != nil {
		logger.Error("Failed to fetch users", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, users)
}

// DeleteFamilyUser はユーザーとそのお題・音声を削除します。自分自身は削除できない
func DeleteFamilyUser(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	claims := middlewares.Claims(c)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		notFound(c, "User not found")
		return
	}
	if user.GameID != claims.GameID {
		c.JSON(http.StatusForbidden, gin.H{"msg": "Unauthorized to delete user from another game"})
		return
	}
	if user.ID == claims.UserID {
		badRequest(c, "Cannot delete yourself here. Delete the game instead?")
		return
	}

	keys, err := database.DeleteUserCascade(db, user)
	if err != nil {
		logger.Error("Failed to delete user", zap.Error(err))
		serverError(c)
		return
	}
	removeFiles(c.Request.Context(), files, keys, logger)
	logger.Info("User deleted", zap.Uint("gameID", user.GameID), zap.Uint("userID", user.ID))
	c.JSON(http.StatusOK, gin.H{"msg": "User and their challenges deleted"})
}

// SetPermissions はゲームモード画面への入場可否を切り替えます。
func SetPermissions(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.PermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CanPlay == nil {
		badRequest(c, "canPlay is required")
		return
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		notFound(c, "User not found")
		return
	}
	if user.GameID != middlewares.Claims(c).GameID {
		c.JSON(http.StatusForbidden, gin.H{"msg": "Unauthorized"})
		return
	}
	if err := db.Model(&user).Update("can_play", *req.CanPlay).Error; err != nil {
		logger.Error("Failed to update permissions", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, user)
}

func UpdateFamilyGame(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var req models.GameUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	var game models.Game
	if err := db.First(&game, middlewares.Claims(c).GameID).Error; err != nil {
		notFound(c, "Game not found")
		return
	}
	if err := updateGame(db, &game, req); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Game updated successfully", "game": game})
}

func updateGame(db *gorm.DB, game *models.Game, req models.GameUpdateRequest) error {
	if err := applyGameUpdate(db, game, req); err != nil {
		return err
	}
	return saveGameSettings(db, game)
}

func respondUpdateError(c *gin.Context, err error, logger *zap.Logger) {
	var ve validationError
	if errors.As(err, &ve) {
		badRequest(c, ve.Error())
		return
	}
	logger.Error("Update failed", zap.Error(err))
	serverError(c)
}

// DeleteFamilyGame はゲームと全メンバー・お題・音声を削除します。
func DeleteFamilyGame(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	gameID := middlewares.Claims(c).GameID
	keys, err := database.DeleteGameCascade(db, gameID)
	if err != nil {
		logger.Error("Failed to delete game", zap.Error(err))
		serverError(c)
		return
	}
	removeFiles(c.Request.Context(), files, keys, logger)
	logger.Info("Game deleted", zap.Uint("gameID", gameID))
	c.JSON(http.StatusOK, gin.H{"msg": "Game deleted successfully"})
}
