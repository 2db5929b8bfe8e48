package utils

import (
	"context"
	"time"

	"partyserver/models"
	"partyserver/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CronCleaner は論理削除されたデータを定期的に物理削除します。
func CronCleaner(db *gorm.DB, files storage.Storage, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	// 論理削除から24時間経った音声をファイルごと削除（毎日）
	c.AddFunc("@daily", func() {
		logger.Info("削除済み音声のクリーンナップを開始")
		PurgeDeletedAudio(context.Background(), db, files, logger, time.Now().Add(-24*time.Hour))
	})

	// 論理削除されたお題を削除するジョブ（"分 時 日 月 曜日"）
	c.AddFunc("0 3 * * *", func() {
		logger.Info("削除済みお題のクリーンナップを開始")
		result := db.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", time.Now().Add(-48*time.Hour)).
			Delete(&models.Challenge{})
		if result.Error != nil {
			logger.Error("お題の削除に失敗しました", zap.Error(result.Error))
		} else {
			logger.Info("お題の削除完了", zap.Int("challenges_deleted", int(result.RowsAffected)))
		}
	})

	c.Start()
	return c
}

// PurgeDeletedAudio removes audio rows soft-deleted before cutoff and their stored files.
func PurgeDeletedAudio(ctx context.Context, db *gorm.DB, files storage.Storage, logger *zap.Logger, cutoff time.Time) {
	var clips []models.AudioClip
	if err := db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
		Find(&clips).Error; err != nil {
		logger.Error("削除済み音声の取得に失敗しました", zap.Error(err))
		return
	}

	for _, clip := range clips {
		if err := files.Delete(ctx, clip.StorageKey); err != nil {
			// ファイルが消せなくても次回また試す
			logger.Warn("音声ファイルの削除に失敗しました", zap.String("key", clip.StorageKey), zap.Error(err))
			continue
		}
		if err := db.Unscoped().Delete(&clip).Error; err != nil {
			logger.Error("音声の削除に失敗しました", zap.Uint("id", clip.ID), zap.Error(err))
		}
	}
	logger.Info("削除済み音声のクリーンナップ完了", zap.Int("clips", len(clips)))
}
