// connection は接続ごとのセッションIDと死活監視を扱う。
package connection

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
)

// GenerateAndStoreSessionID は新しいセッションIDを発行してRedisへ保存する。
func GenerateAndStoreSessionID(ctx context.Context, rdb *redis.Client) (string, error) {
	id := uuid.New().String()
	if err := rdb.Set(ctx, sessionKeyPrefix+id, 1, sessionTTL).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// ValidateSessionID は保存済みセッションかどうかを確認する。
func ValidateSessionID(ctx context.Context, rdb *redis.Client, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := rdb.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RestoreSessionID は再接続時のセッション復元。
// 旧IDが有効なら破棄して新IDを発行する(固定IDの使い回しを防ぐ)。
// 旧IDが無効または空なら単に新規発行する。
func RestoreSessionID(ctx context.Context, rdb *redis.Client, oldID string) (string, bool, error) {
	valid, err := ValidateSessionID(ctx, rdb, oldID)
	if err != nil {
		return "", false, err
	}
	if valid {
		if err := rdb.Del(ctx, sessionKeyPrefix+oldID).Err(); err != nil {
			return "", false, err
		}
	}
	newID, err := GenerateAndStoreSessionID(ctx, rdb)
	if err != nil {
		return "", false, err
	}
	return newID, valid, nil
}

// DeleteSessionID は切断時の後始末。失敗してもTTLで自然消滅する。
func DeleteSessionID(ctx context.Context, rdb *redis.Client, id string) error {
	if id == "" {
		return nil
	}
	return rdb.Del(ctx, sessionKeyPrefix+id).Err()
}
