package connection

import (
	"time"

	"go.uber.org/zap"

	"lbserver/models"
)

const (
	// PingInterval ごとにPingを打ち、ReadTimeout 以内にPongが
	// 返らない接続は読み取り側のdeadlineで死んだとみなす。
	PingInterval = 10 * time.Second
	ReadTimeout  = 60 * time.Second
)

// MaintainConnection は接続が生きている間、定期的にPingを送り続ける。
// doneが閉じられるか送信に失敗したら戻る。readループと対で動かすこと。
func MaintainConnection(client *models.Client, logger *zap.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				logger.Debug("Ping failed, closing connection",
					zap.String("sessionId", client.SessionID), zap.Error(err))
				client.Conn.Close()
				return
			}
		}
	}
}
