package handlers

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"partyserver/middlewares"
	"partyserver/models"
	"partyserver/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// storeUpload はフォームの file を検証して保存します。
func storeUpload(c *gin.Context, files storage.Storage, prefix string, want storage.MediaKind) (key, url, name string, ok bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return "", "", "", false
	}
	contentType := fh.Header.Get("Content-Type")
	kind, err := storage.Classify(contentType, fh.Filename)
	if err != nil || (want != "" && kind != want) {
		badRequest(c, storage.ErrUnsupportedType.Error())
		return "", "", "", false
	}
	if err := storage.CheckSize(kind, fh.Size); err != nil {
		badRequest(c, err.Error())
		return "", "", "", false
	}
	src, err := fh.Open()
	if err != nil {
		serverError(c)
		return "", "", "", false
	}
	defer src.Close()

	if prefix == "" {
		prefix = string(kind)
	}
	key = storage.NewKey(prefix, fh.Filename)
	url, err = files.Save(c.Request.Context(), key, src, fh.Size, contentType)
	if err != nil {
		serverError(c)
		return "", "", "", false
	}
	return key, url, fh.Filename, true
}

// UploadAudio はテーマ曲を登録します。以前のクリップは論理削除し、ファイルは CronCleaner が消す
func UploadAudio(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	duration := models.DefaultClipSeconds
	if raw := c.PostForm("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || !models.ValidClipDuration(d) {
			badRequest(c, "duration must be between 5 and 30 seconds")
			return
		}
		duration = d
	}

	key, url, name, ok := storeUpload(c, files, "audio", storage.KindAudio)
	if !ok {
		return
	}
	claims := middlewares.Claims(c)
	clip := models.AudioClip{
		GameID:       claims.GameID,
		UploaderID:   claims.UserID,
		Filename:     path.Base(key),
		StorageKey:   key,
		OriginalName: name,
		URL:          url,
		Duration:     duration,
	}

	var old []models.AudioClip
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ? AND uploader_id = ?", claims.GameID, claims.UserID).Find(&old).Error; err != nil {
			return err
		}
		if len(old) > 0 {
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		}
		return tx.Create(&clip).Error
	})
	if err != nil {
		logger.Error("Failed to save audio clip", zap.Error(err))
		removeFiles(c.Request.Context(), files, []string{key}, logger)
		serverError(c)
		return
	}
	if len(old) > 0 {
		logger.Info("Audio clip replaced", zap.Uint("userID", claims.UserID), zap.Int("previous", len(old)))
	}
	c.JSON(http.StatusOK, clip)
}

func MyAudio(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	claims := middlewares.Claims(c)
	var clips []models.AudioClip
	if err := db.Where("game_id = ? AND uploader_id = ?", claims.GameID, claims.UserID).Order("created_at desc").Find(&clips).Error; err != nil {
		logger.Error("Failed to fetch audio", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, clips)
}

func loadOwnedClip(c *gin.Context, db *gorm.DB) (*models.AudioClip, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var clip models.AudioClip
	if err := db.First(&clip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Audio not found")
		} else {
			serverError(c)
		}
		return nil, false
	}
	claims := middlewares.Claims(c)
	switch {
	case claims.Role.IsSuperAdmin():
	case clip.GameID != claims.GameID:
		c.JSON(http.StatusForbidden, gin.H{"msg": "Not authorized for this game"})
		return nil, false
	case clip.UploaderID != claims.UserID && !claims.Role.CanManageTenant():
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Not authorized"})
		return nil, false
	}
	return &clip, true
}

func UpdateAudioDuration(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	clip, ok := loadOwnedClip(c, db)
	if !ok {
		return
	}
	var req models.DurationRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidClipDuration(req.Duration) {
		badRequest(c, "duration must be between 5 and 30 seconds")
		return
	}
	if err := db.Model(clip).Update("duration", req.Duration).Error; err != nil {
		logger.Error("Failed to update audio", zap.Error(err))
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, clip)
}

// DeleteAudio はクリップとファイルを削除します。お題からの参照も外す
func DeleteAudio(c *gin.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger) {
	clip, ok := loadOwnedClip(c, db)
	if !ok {
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Challenge{}).Where("sound_id = ?", clip.ID).Update("sound_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(clip).Error
	})
	if err != nil {
		logger.Error("Failed to delete audio", zap.Error(err))
		serverError(c)
		return
	}
	removeFiles(c.Request.Context(), files, []string{clip.StorageKey}, logger)
	c.JSON(http.StatusOK, gin.H{"msg": "Audio removed"})
}
