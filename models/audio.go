package models

import (
	"gorm.io/gorm"
)

const (
	MinClipSeconds     = 5
	MaxClipSeconds     = 30
	DefaultClipSeconds = 30
)

// AudioClip はプレイヤーのテーマ曲です。
type AudioClip struct {
	gorm.Model
	GameID       uint   `gorm:"not null;index" json:"gameId"`
	UploaderID   uint   `gorm:"not null;index" json:"uploaderId"`
	Filename     string `gorm:"not null" json:"filename"`
	StorageKey   string `gorm:"not null" json:"-"`
	OriginalName string `json:"originalName"`
	URL          string `json:"url"`
	// 再生する秒数(5〜30)
	Duration int `gorm:"not null;default:30" json:"duration"`
}

// ValidClipDuration reports whether d is an accepted declared clip length.
func ValidClipDuration(d int) bool {
	return d >= MinClipSeconds && d <= MaxClipSeconds
}
