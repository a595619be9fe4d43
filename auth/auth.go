// auth はJWTセッショントークンの発行と検証。
package auth

import (
	"errors"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"

	"lbserver/models"
)

var ErrInvalidToken = errors.New("auth: invalid token")

const tokenLifetime = 24 * time.Hour

// jwtKey は環境変数から読む。未設定時は開発用の既定値。
func jwtKey() []byte {
	if key := os.Getenv("JWT_SECRET_KEY"); key != "" {
		return []byte(key)
	}
	return []byte("dev-secret-change-me")
}

// GenerateSessionToken はロールと帰属情報を含むトークンを発行する。
func GenerateSessionToken(claims models.SessionClaims) (string, error) {
	claims.ExpiresAt = time.Now().Add(tokenLifetime).Unix()
	claims.IssuedAt = time.Now().Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey())
}

// ParseSessionToken はトークンを検証してクレームを返す。
func ParseSessionToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
