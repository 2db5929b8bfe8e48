package database

import (
	"partyserver/models"

	"gorm.io/gorm"
)

// DeleteUserCascade はユーザーとそのお題・音声を削除し、削除した音声の保存キーを返します。
// 論理削除済みでまだ掃除されていない音声のキーも含む
func DeleteUserCascade(db *gorm.DB, user models.User) ([]string, error) {
	var keys []string
	err := db.Transaction(func(tx *gorm.DB) error {
		var clips []models.AudioClip
		if err := tx.Unscoped().Where("uploader_id = ?", user.ID).Find(&clips).Error; err != nil {
			return err
		}
		ids := make([]uint, 0, len(clips))
		for _, clip := range clips {
			ids = append(ids, clip.ID)
			keys = append(keys, clip.StorageKey)
		}
		// 他のプレイヤーのお題もこの音声を効果音にしていることがある
		if len(ids) > 0 {
			if err := tx.Unscoped().Model(&models.Challenge{}).
				Where("sound_id IN ?", ids).
				Update("sound_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("uploader_id = ?", user.ID).Delete(&models.Challenge{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("uploader_id = ?", user.ID).Delete(&models.AudioClip{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&user).Error
	})
	return keys, err
}

// DeleteGameCascade はゲームと所属する全データを削除します。
func DeleteGameCascade(db *gorm.DB, gameID uint) ([]string, error) {
	var keys []string
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.AudioClip{}).
			Where("game_id = ?", gameID).
			Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		// お題が音声を参照しているので先に消す
		for _, m := range []interface{}{&models.Challenge{}, &models.AudioClip{}, &models.User{}} {
			if err := tx.Unscoped().Where("game_id = ?", gameID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&models.Game{}, gameID).Error
	})
	return keys, err
}
