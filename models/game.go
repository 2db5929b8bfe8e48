package models

import (
	"gorm.io/gorm"
)

const (
	DefaultMinIntervalSeconds = 60
	DefaultMaxIntervalSeconds = 300
	DefaultParticipants       = 2
	MinimumMinIntervalSeconds = 60
)

// GameConfig はゲーム(家族)単位の進行設定です。
type GameConfig struct {
	MinIntervalSeconds  int `gorm:"not null;default:60" json:"minTime"`
	MaxIntervalSeconds  int `gorm:"not null;default:300" json:"maxTime"`
	DefaultParticipants int `gorm:"not null;default:2" json:"defaultParticipants"`
}

// Game モデルの定義。家族で共有するテナントで、抽選履歴もここに持つ。
type Game struct {
	gorm.Model
	Name         string     `gorm:"uniqueIndex;not null" json:"name"`
	PasswordHash string     `gorm:"not null" json:"-"`
	AdminUserID  *uint      `json:"adminUserId"`
	Config       GameConfig `gorm:"embedded" json:"config"`

	PlayedPlayerIDs    IDList     `gorm:"column:played_player_ids;type:jsonb;not null;default:'[]'" json:"playedPlayerIds"`
	PlayedChallengeIDs IDList     `gorm:"column:played_challenge_ids;type:jsonb;not null;default:'[]'" json:"playedChallengeIds"`
	UsedRandomNumbers  NumberList `gorm:"column:used_random_numbers;type:jsonb;not null;default:'[]'" json:"usedRandomNumbers"`

	// 楽観的排他制御のリビジョン。保存のたびに1つ進む
	Version uint `gorm:"not null;default:1" json:"version"`
}

// Normalize は欠けている設定値をデフォルトで埋めます。
func (c GameConfig) Normalize() GameConfig {
	if c.MinIntervalSeconds < MinimumMinIntervalSeconds {
		c.MinIntervalSeconds = DefaultMinIntervalSeconds
	}
	if c.MaxIntervalSeconds < c.MinIntervalSeconds {
		c.MaxIntervalSeconds = c.MinIntervalSeconds
	}
	if c.DefaultParticipants < 1 {
		c.DefaultParticipants = DefaultParticipants
	}
	return c
}
