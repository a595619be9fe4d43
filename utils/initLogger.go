package utils

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitLogger はzapロガーを初期化する。LOG_ENV=development で開発用設定になる。
func InitLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// RequestLogger はHTTPリクエストを構造化ログに残すginミドルウェア。
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIp", c.ClientIP()))
	}
}
