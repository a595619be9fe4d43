// middlewares はHTTP層の横断処理。
package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lbserver/auth"
	"lbserver/models"
)

const claimsKey = "sessionClaims"

// RequireSession はAuthorizationヘッダのBearerトークンを検証し、
// クレームをコンテキストへ格納する。無効なら401で打ち切る。
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := auth.ParseSessionToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole はRequireSessionの後段で特定ロールのみを通す。
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := SessionFromContext(c)
		if claims == nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// SessionFromContext は格納済みクレームを取り出す。未認証ならnil。
func SessionFromContext(c *gin.Context) *models.SessionClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
