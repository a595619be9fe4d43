package models

import (
	"time"
)

// Completion モデルの定義。(team_id, challenge_id)の組で一意。
// Pointsは完了時点のチャレンジ点数を記録する（後からチャレンジ定義が
// 編集されても履歴は変わらない）。取り消し時はこの行ごと削除される。
type Completion struct {
	ID          uint   `gorm:"primaryKey"`
	TeamID      string `gorm:"not null;index;uniqueIndex:idx_completions_team_challenge"`
	ChallengeID string `gorm:"not null;uniqueIndex:idx_completions_team_challenge"`
	Points      int    `gorm:"not null"`
	CompletedAt time.Time
}
