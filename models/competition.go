package models

import (
	"time"
)

// 大会のステータス。ステータス遷移の正当性はあえて強制しない
// （ホストコードさえ合っていれば ended→active も受け付ける）。
const (
	StatusActive  = "active"
	StatusStarted = "started"
	StatusPaused  = "paused"
	StatusEnded   = "ended"
)

// ValidStatus はステータス列挙値の判定を行います。
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusStarted, StatusPaused, StatusEnded:
		return true
	}
	return false
}

// Competition モデルの定義。1つの大会（リーダーボード）に対応する。
// HostCodeとAccessCodeは全大会を通じて一意。
type Competition struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	HostCode       string `gorm:"uniqueIndex;not null"`
	AccessCode     string `gorm:"uniqueIndex;not null"`
	ChallengesJSON string `gorm:"not null"`
	Status         string `gorm:"not null;default:active"`
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}
