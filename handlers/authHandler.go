package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"partyserver/auth"
	"partyserver/middlewares"
	"partyserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GameRegister は家族のゲームを新規作成します。
func GameRegister(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var req models.GameRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and password are required")
		return
	}

	var count int64
	if err := db.Model(&models.Game{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
		logger.Error("Failed to check game name", zap.Error(err))
		serverError(c)
		return
	}
	if count > 0 {
		badRequest(c, "Game name already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		serverError(c)
		return
	}
	game := models.Game{
		Name:         req.Name,
		PasswordHash: hash,
		Config: models.GameConfig{
			MinIntervalSeconds:  models.DefaultMinIntervalSeconds,
			MaxIntervalSeconds:  models.DefaultMaxIntervalSeconds,
			DefaultParticipants: models.DefaultParticipants,
		},
		Version: 1,
	}
	if err := db.Create(&game).Error; err != nil {
		logger.Error("Failed to create game", zap.Error(err))
		serverError(c)
		return
	}
	logger.Info("Game registered", zap.Uint("gameID", game.ID))
	c.JSON(http.StatusOK, gin.H{"msg": "Game registered successfully", "gameId": game.ID})
}

// GameLogin はゲームのパスワードを確認して gameId を返します。
func GameLogin(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var req models.GameRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and password are required")
		return
	}
	var game models.Game
	if err := db.Where("name = ?", req.Name).First(&game).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to fetch game", zap.Error(err))
		}
		badRequest(c, "Invalid Credentials")
		return
	}
	if !auth.CheckPassword(game.PasswordHash, req.Password) {
		badRequest(c, "Invalid Credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Game access granted", "gameId": game.ID})
}

func userResponse(u models.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username, "role": u.Role, "canPlay": u.CanPlay, "gameId": u.GameID}
}

// UserRegister はゲームにユーザーを登録します。最初の登録者が家族管理者になる
func UserRegister(c *gin.Context, db *gorm.DB, tokens *auth.TokenManager, logger *zap.Logger) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "gameId, username and password are required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		serverError(c)
		return
	}

	var user models.User
	errUserExists := errors.New("user exists")
	err = db.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, req.GameID).Error; err != nil {
			return err
		}
		var exists int64
		if err := tx.Model(&models.User{}).Where("game_id = ? AND username = ?", req.GameID, req.Username).Count(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return errUserExists
		}
		var members int64
		if err := tx.Model(&models.User{}).Where("game_id = ?", req.GameID).Count(&members).Error; err != nil {
			return err
		}

		user = models.User{GameID: req.GameID, Username: req.Username, PasswordHash: hash, Role: models.RolePlayer}
		if members == 0 {
			user.Role = models.RoleFamilyAdmin
			user.CanPlay = true
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if user.Role == models.RoleFamilyAdmin {
			return tx.Model(&game).Update("admin_user_id", user.ID).Error
		}
		return nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		notFound(c, "Game not found")
		return
	case errors.Is(err, errUserExists):
		badRequest(c, "User already exists in this game")
		return
	case err != nil:
		logger.Error("Failed to register user", zap.Error(err))
		serverError(c)
		return
	}

	token, err := tokens.GenerateToken(user)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		serverError(c)
		return
	}
	logger.Info("User registered", zap.Uint("gameID", user.GameID), zap.Uint("userID", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user)})
}

func UserLogin(c *gin.Context, db *gorm.DB, tokens *auth.TokenManager, logger *zap.Logger) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "gameId, username and password are required")
		return
	}
	var user models.User
	if err := db.Where("game_id = ? AND username = ?", req.GameID, req.Username).First(&user).Error; err != nil {
		badRequest(c, "Invalid Credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		badRequest(c, "Invalid Credentials")
		return
	}
	token, err := tokens.GenerateToken(user)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user)})
}

// AdminLogin はスーパー管理者の資格情報を設定値と比較します。
func AdminLogin(c *gin.Context, config models.Config, tokens *auth.TokenManager, logger *zap.Logger) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	if config.SuperAdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(req.Username), []byte(config.SuperAdminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(config.SuperAdminPassword)) != 1 {
		logger.Warn("Admin login rejected")
		badRequest(c, "Invalid Admin Credentials")
		return
	}
	token, err := tokens.GenerateAdminToken(req.Username)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me はログイン中のユーザー情報を返します。
func Me(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	claims := middlewares.Claims(c)
	if claims.Role.IsSuperAdmin() {
		c.JSON(http.StatusOK, gin.H{"id": "admin", "role": models.RoleSuperAdmin})
		return
	}
	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "User not found")
			return
		}
		logger.Error("Failed to fetch user", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}
