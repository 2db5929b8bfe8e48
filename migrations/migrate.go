package migrations

import (
	"fmt"

	"partyserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaMigration は適用済みのマイグレーションを記録します。
type SchemaMigration struct {
	ID string `gorm:"primaryKey"`
}

type step struct {
	id  string
	run func(tx *gorm.DB) error
}

// 日付順に並べること。一度適用したものは書き換えない
var steps = []step{
	{"202601150900_create_core_tables", func(tx *gorm.DB) error {
		return tx.AutoMigrate(&models.Game{}, &models.User{}, &models.AudioClip{}, &models.Challenge{})
	}},
	{"202601182130_index_challenges_by_owner", func(tx *gorm.DB) error {
		return tx.Exec("CREATE INDEX IF NOT EXISTS idx_challenges_game_uploader ON challenges (game_id, uploader_id)").Error
	}},
	{"202601221015_backfill_empty_history", func(tx *gorm.DB) error {
		for _, col := range []string{"played_player_ids", "played_challenge_ids", "used_random_numbers"} {
			if err := tx.Exec("UPDATE games SET " + col + " = '[]' WHERE " + col + " IS NULL").Error; err != nil {
				return err
			}
		}
		return nil
	}},
}

// Migrate は未適用のマイグレーションを順番に実行します。
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return err
	}
	for _, s := range steps {
		var count int64
		if err := db.Model(&SchemaMigration{}).Where("id = ?", s.id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := s.run(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{ID: s.id}).Error
		})
		if err != nil {
			logger.Error("マイグレーションに失敗しました", zap.String("migration", s.id), zap.Error(err))
			return fmt.Errorf("migration %s: %w", s.id, err)
		}
		logger.Info("マイグレーション完了", zap.String("migration", s.id))
	}
	return nil
}
