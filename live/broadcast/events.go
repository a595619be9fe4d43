package broadcast

import (
	"time"

	"lbserver/store"
)

// Event はルーム内へ放送される1件の出来事。
// Name()がワイヤ上のtypeフィールドになる。
type Event interface {
	Name() string
}

// LeaderboardUpdate は順位表全体の再送。得点変動のたびに放送される。
type LeaderboardUpdate struct {
	CompetitionID string             `json:"leaderboardId"`
	Teams         []store.RankedTeam `json:"teams"`
}

func (LeaderboardUpdate) Name() string { return "leaderboard:update" }

// ChallengeCompleted は課題完了の通知。順位表更新とは別に個別配信される。
type ChallengeCompleted struct {
	TeamID         string    `json:"teamId"`
	TeamName       string    `json:"teamName"`
	ChallengeID    string    `json:"challengeId"`
	ChallengeTitle string    `json:"challengeTitle"`
	Points         int       `json:"points"`
	TotalPoints    int       `json:"totalPoints"`
	CompletedAt    time.Time `json:"completedAt"`
}

func (ChallengeCompleted) Name() string { return "team:completed" }

// ChallengeUncompleted は完了取り消しの通知。
// 定義から削除済みの課題を取り消した場合、titleは空文字になる。
type ChallengeUncompleted struct {
	TeamID         string `json:"teamId"`
	TeamName       string `json:"teamName"`
	ChallengeID    string `json:"challengeId"`
	ChallengeTitle string `json:"challengeTitle"`
	Points         int    `json:"points"`
	TotalPoints    int    `json:"totalPoints"`
}

func (ChallengeUncompleted) Name() string { return "team:incomplete" }

// TeamJoined は新チーム登録の通知。
type TeamJoined struct {
	TeamID   string   `json:"teamId"`
	TeamName string   `json:"teamName"`
	Members  []string `json:"members"`
}

func (TeamJoined) Name() string { return "team:joined" }

// StatusChanged は大会ステータス変更の通知。
type StatusChanged struct {
	CompetitionID string     `json:"leaderboardId"`
	Status        string     `json:"status"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
}

func (StatusChanged) Name() string { return "competition:status" }

// UserConnected / UserDisconnected はルーム在室数の増減通知。
type UserConnected struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

func (UserConnected) Name() string { return "user:connected" }

type UserDisconnected struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

func (UserDisconnected) Name() string { return "user:disconnected" }
