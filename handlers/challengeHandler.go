package handlers

import (
	"errors"
	"net/http"

	"partyserver/middlewares"
	"partyserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// applyChallengeRequest はリクエストの内容をお題に反映して検証します。
// 作成時は未指定の timeLimit を60秒にする
func applyChallengeRequest(ch *models.Challenge, req models.ChallengeRequest, creating bool) error {
	if req.Title != "" || creating {
		ch.Title = req.Title
	}
	if req.Text != "" || creating {
		ch.Text = req.Text
	}
	if ch.Title == "" || ch.Text == "" {
		return validationError("title and text are required")
	}

	ch.Description = req.Description
	ch.Voice = req.VoiceConfig
	ch.Objects = req.Objects
	ch.Rules = req.Rules
	ch.Notes = req.Notes
	ch.Punishment = req.Punishment
	ch.Player = req.PlayerConfig
	ch.Multimedia = req.Multimedia
	ch.SoundID = req.SoundID
	if req.DurationType != "" {
		ch.DurationType = req.DurationType
	}
	if req.Participants != nil {
		ch.Participants = *req.Participants
	}
	if req.DurationLimit != nil {
		ch.DurationLimit = *req.DurationLimit
	}
	if req.TimeLimit != nil {
		ch.TimeLimit = *req.TimeLimit
	} else if creating {
		ch.TimeLimit = models.DefaultTimeLimit
	}
	ch.ApplyDefaults()

	switch ch.DurationType {
	case models.DurationFixed, models.DurationUntilNext, models.DurationMultiChallenge:
	default:
		return validationError("durationType must be fixed, untilNext or multiChallenge")
	}
	switch ch.Player.TargetType {
	case models.TargetAll, models.TargetOdd, models.TargetEven, models.TargetSpecific, models.TargetCustom, models.TargetRandom:
	default:
		return validationError("invalid playerConfig.targetType")
	}
	if ch.TimeLimit < 0 {
		return validationError("timeLimit must not be negative")
	}
	return nil
}

// checkSound は紐づける音声が同じゲームのものか確認します。
func checkSound(db *gorm.DB, gameID uint, soundID *uint) error {
	if soundID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&models.AudioClip{}).Where("id = ? AND game_id = ?", *soundID, gameID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return validationError("soundId does not belong to this game")
	}
	return nil
}

func CreateChallenge(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	claims := middlewares.Claims(c)
	challenge := models.Challenge{GameID: claims.GameID, UploaderID: claims.UserID}
	if err := applyChallengeRequest(&challenge, req, true); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	if err := checkSound(db, claims.GameID, challenge.SoundID); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	if err := db.Create(&challenge).Error; err != nil {
		logger.Error("Failed to create challenge", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// MyChallenges は自分が投稿したお題を新しい順に返します。
func MyChallenges(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	claims := middlewares.Claims(c)
	var challenges []models.Challenge
	err := db.Preload("Sound").
		Where("game_id = ? AND uploader_id = ?", claims.GameID, claims.UserID).
		Order("created_at desc").
		Find(&challenges).Error
	if err != nil {
		logger.Error("Failed to fetch challenges", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, challenges)
}

// loadOwnedChallenge はお題を読み込み、編集権限を確認します。
// 投稿者本人、同じゲームの家族管理者、スーパー管理者が編集できる
func loadOwnedChallenge(c *gin.Context, db *gorm.DB) (*models.Challenge, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var challenge models.Challenge
	if err := db.First(&challenge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Challenge not found")
		} else {
			serverError(c)
		}
		return nil, false
	}
	claims := middlewares.Claims(c)
	switch {
	case claims.Role.IsSuperAdmin():
	case challenge.GameID != claims.GameID:
		c.JSON(http.StatusForbidden, gin.H{"msg": "Not authorized for this game"})
		return nil, false
	case challenge.UploaderID != claims.UserID && !claims.Role.CanManageTenant():
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Not authorized"})
		return nil, false
	}
	return &challenge, true
}

func UpdateChallenge(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	challenge, ok := loadOwnedChallenge(c, db)
	if !ok {
		return
	}
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := applyChallengeRequest(challenge, req, false); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	if err := checkSound(db, challenge.GameID, challenge.SoundID); err != nil {
		respondUpdateError(c, err, logger)
		return
	}
	if err := db.Save(challenge).Error; err != nil {
		logger.Error("Failed to update challenge", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

func DeleteChallenge(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	challenge, ok := loadOwnedChallenge(c, db)
	if !ok {
		return
	}
	if err := db.Delete(challenge).Error; err != nil {
		logger.Error("Failed to delete challenge", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Challenge removed"})
}
