package database

import (
	"context"
	"errors"

	"partyserver/models"
	"partyserver/selection"

	"gorm.io/gorm"
)

// GormStore は selection.Store のPostgreSQL実装です。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadTenant(ctx context.Context, gameID uint) (*models.Game, error) {
	var g models.Game
	if err := s.db.WithContext(ctx).First(&g, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, selection.ErrTenantNotFound
		}
		return nil, err
	}
	return &g, nil
}

// SaveHistory は version が一致するときだけ履歴を書き込みます。
func (s *GormStore) SaveHistory(ctx context.Context, g *models.Game, expectedVersion uint) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Game{}).
		Where("id = ? AND version = ?", g.ID, expectedVersion).
		Updates(map[string]interface{}{
			"played_player_ids":    g.PlayedPlayerIDs,
			"played_challenge_ids": g.PlayedChallengeIDs,
			"used_random_numbers":  g.UsedRandomNumbers,
			"version":              expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Game{}).Where("id = ?", g.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return selection.ErrTenantNotFound
		}
		return selection.ErrConflict
	}
	g.Version = expectedVersion + 1
	return nil
}

func (s *GormStore) ListPlayers(ctx context.Context, gameID uint) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&users).Error
	return users, err
}

func (s *GormStore) ListChallenges(ctx context.Context, gameID, ownerID uint) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.db.WithContext(ctx).Preload("Sound").
		Where("game_id = ? AND uploader_id = ?", gameID, ownerID).
		Order("id").
		Find(&challenges).Error
	return challenges, err
}

func (s *GormStore) GetChallenge(ctx context.Context, gameID, challengeID uint) (*models.Challenge, error) {
	var c models.Challenge
	err := s.db.WithContext(ctx).Preload("Sound").
		Where("id = ? AND game_id = ?", challengeID, gameID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, selection.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) GetPlayer(ctx context.Context, gameID, userID uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ? AND game_id = ?", userID, gameID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, selection.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) ListAudioClips(ctx context.Context, gameID, ownerID uint) ([]models.AudioClip, error) {
	var clips []models.AudioClip
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND uploader_id = ?", gameID, ownerID).
		Find(&clips).Error
	return clips, err
}
