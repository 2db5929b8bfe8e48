package handlers

import (
	"net/http"
	"path"

	"partyserver/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadMedia はお題のマルチメディア(画像・音声・動画・文書)を保存します。
func UploadMedia(c *gin.Context, files storage.Storage, logger *zap.Logger) {
	key, url, name, ok := storeUpload(c, files, "", "")
	if !ok {
		return
	}
	logger.Info("Media uploaded", zap.String("key", key))
	c.JSON(http.StatusOK, gin.H{
		"filename":     path.Base(key),
		"path":         key,
		"originalName": name,
		"url":          url,
	})
}
