package auth

import (
	"errors"
	"fmt"
	"time"

	"partyserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const (
	// 家族のユーザーは1年間ログインしたまま
	UserTokenTTL  = 365 * 24 * time.Hour
	AdminTokenTTL = time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager はJWTの発行と検証を行います。
type TokenManager struct {
	key []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{key: []byte(secret)}
}

// GenerateToken はユーザー用のトークンを生成します。
func (m *TokenManager) GenerateToken(user models.User) (string, error) {
	claims := &models.MyClaims{
		UserID:  user.ID,
		GameID:  user.GameID,
		Role:    user.Role,
		CanPlay: user.CanPlay,
		Name:    user.Username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(UserTokenTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	return m.sign(claims)
}

// GenerateAdminToken はスーパー管理者用の短命トークンを生成します。
func (m *TokenManager) GenerateAdminToken(username string) (string, error) {
	claims := &models.MyClaims{
		Role: models.RoleSuperAdmin,
		Name: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(AdminTokenTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	return m.sign(claims)
}

func (m *TokenManager) sign(claims *models.MyClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// ParseToken はトークンを検証してクレームを返します。
func (m *TokenManager) ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
