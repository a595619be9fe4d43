package models

import (
	"encoding/json"
	"time"
)

// Team モデルの定義。(competition_id, name)の組で一意。
// TotalPointsは完了レコードの合計点の非正規化カウンタで、
// 更新は必ずScoreLedgerのトランザクション内で行うこと。
type Team struct {
	ID            string `gorm:"primaryKey"`
	CompetitionID string `gorm:"not null;index;uniqueIndex:idx_teams_competition_name"`
	Name          string `gorm:"not null;uniqueIndex:idx_teams_competition_name"`
	MembersJSON   string `gorm:"not null"`
	TeamCode      string `gorm:"uniqueIndex;not null"`
	TotalPoints   int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

// Members はメンバー名リストをデコードして返します。
func (t *Team) Members() []string {
	var members []string
	if err := json.Unmarshal([]byte(t.MembersJSON), &members); err != nil {
		return []string{}
	}
	return members
}

// SetMembers はメンバー名リストをJSONにエンコードして保持します。
func (t *Team) SetMembers(members []string) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}
	t.MembersJSON = string(raw)
	return nil
}
