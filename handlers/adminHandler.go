package handlers

import (
	"net/http"

	"partyserver/auth"
	"partyserver/database"
	"partyserver/models"
	"partyserver/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// スーパー管理者用のハンドラ群

func AdminGames(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var games []models.Game
	if err := db.Order("created_at desc").Find(&games).Error; err != nil {
		logger.Error("Failed to fetch games", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, games)
}

func AdminUpdateGame(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.GameUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	var game models.Game
	if err := db.First(&game, gameID).Error; err != nil {
		notFound(c, "Game not found")
		return
	}
	if err := updateGame(db, &game, req); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, game)
}

func AdminDeleteGame(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	keys, err := database.DeleteGameCascade(db, gameID)
	if err != nil {
		logger.Error("Failed to delete game", zap.Error(err))
		serverError(c)
		return
	}
	removeFiles(c.Request.Context(), files, keys, logger)
	c.JSON(http.StatusOK, gin.H{"msg": "Game deleted"})
}

func AdminGameUsers(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	gameID, ok := paramID(c, "gameId")
	if !ok {
		return
	}
	var users []models.User
	if err := db.Where("game_id = ?", gameID).Order("id").Find(&users).Error; err != nil {
		logger.Error("Failed to fetch users", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, users)
}

func AdminUpdateUser(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		notFound(c, "User not found")
		return
	}

	updates := map[string]interface{}{}
	if req.Username != "" {
		updates["username"] = req.Username
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			serverError(c)
			return
		}
		updates["password_hash"] = hash
	}
	switch req.Role {
	case "":
	case models.RolePlayer, models.RoleFamilyAdmin:
		updates["role"] = req.Role
	default:
		badRequest(c, "Invalid role")
		return
	}
	if req.CanPlay != nil {
		updates["can_play"] = *req.CanPlay
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			logger.Error("Failed to update user", zap.Error(err))
			serverError(c)
			return
		}
	}
	c.JSON(http.StatusOK, user)
}

func AdminDeleteUser(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		notFound(c, "User not found")
		return
	}
	keys, err := database.DeleteUserCascade(db, user)
	if err != nil {
		logger.Error("Failed to delete user", zap.Error(err))
		serverError(c)
		return
	}
	removeFiles(c.Request.Context(), files, keys, logger)
	c.JSON(http.StatusOK, gin.H{"msg": "User deleted"})
}

func AdminUserChallenges(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	var challenges []models.Challenge
	if err := db.Preload("Sound").Where("uploader_id = ?", userID).Order("created_at desc").Find(&challenges).Error; err != nil {
		logger.Error("Failed to fetch challenges", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, challenges)
}
