package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims はJWTクレームの構造体定義です。
type MyClaims struct {
	UserID  uint   `json:"userid"`
	GameID  uint   `json:"gameId"`
	Role    Role   `json:"role"`
	CanPlay bool   `json:"canPlay"`
	Name    string `json:"name"`
	jwt.StandardClaims
}
