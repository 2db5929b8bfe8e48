package models

import (
	"gorm.io/gorm"
)

// Role はユーザーの権限です。
type Role string

const (
	RolePlayer      Role = "player"
	RoleFamilyAdmin Role = "family_admin"
	// スーパー管理者はDBに保存されず、設定ファイルの資格情報でログインする
	RoleSuperAdmin Role = "admin"
)

// CanEnterManualMode reports whether the role may pick the next challenge by hand.
func (r Role) CanEnterManualMode() bool {
	return r == RoleFamilyAdmin || r == RoleSuperAdmin
}

// CanManageTenant reports whether the role may administer users and settings of its game.
func (r Role) CanManageTenant() bool {
	return r == RoleFamilyAdmin || r == RoleSuperAdmin
}

func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// User モデルの定義。ゲームに所属するプレイヤー
type User struct {
	gorm.Model
	GameID       uint   `gorm:"not null;uniqueIndex:idx_game_username" json:"gameId"`
	Username     string `gorm:"not null;uniqueIndex:idx_game_username" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"not null;default:player" json:"role"`
	// ゲームモード画面に入れるかどうか
	CanPlay bool `gorm:"not null;default:false" json:"canPlay"`
}
