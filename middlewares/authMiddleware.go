package middlewares

import (
	"net/http"
	"strings"

	"partyserver/auth"
	"partyserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// AuthMiddleware はBearerトークンを検証し、クレームをコンテキストにセットします。
func AuthMiddleware(tokens *auth.TokenManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
		if tokenString == "" {
			tokenString = c.GetHeader("x-auth-token")
		}
		// WebSocketはヘッダーを付けられないのでクエリも見る
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}

		claims, err := tokens.ParseToken(tokenString)
		if err != nil {
			logger.Warn("認証失敗", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the claims stored by AuthMiddleware.
func Claims(c *gin.Context) *models.MyClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.MyClaims)
	return claims
}

// SetClaims is used by tests to bypass token parsing.
func SetClaims(c *gin.Context, claims *models.MyClaims) {
	c.Set(claimsKey, claims)
}

// RequireTenantAdmin は家族管理者かスーパー管理者だけを通します。
func RequireTenantAdmin() gin.HandlerFunc {
	return require(func(cl *models.MyClaims) bool { return cl.Role.CanManageTenant() }, "Access denied. Family admin only.")
}

func RequireSuperAdmin() gin.HandlerFunc {
	return require(func(cl *models.MyClaims) bool { return cl.Role.IsSuperAdmin() }, "Access denied. Admin only.")
}

// RequireGameMember はゲームに所属するユーザーだけを通します。
func RequireGameMember() gin.HandlerFunc {
	return require(func(cl *models.MyClaims) bool { return cl.GameID != 0 }, "Access denied. Game members only.")
}

// RequireCanPlay はゲームモード画面に入れるユーザーだけを通します。
func RequireCanPlay() gin.HandlerFunc {
	return require(func(cl *models.MyClaims) bool {
		return cl.CanPlay || cl.Role.CanManageTenant()
	}, "Access denied. Ask your family admin for game access.")
}

func require(allowed func(*models.MyClaims) bool, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}
		if !allowed(claims) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": msg})
			return
		}
		c.Next()
	}
}
