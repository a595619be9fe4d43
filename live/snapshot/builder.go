// snapshot はルーム参加直後に送る順位表の全体像を組み立てる。
package snapshot

import (
	"time"

	"go.uber.org/zap"

	"lbserver/models"
	"lbserver/store"
)

// TeamRow は順位行にメンバーと完了課題数を加えたもの。
// 完了数は現在有効なチャレンジのみを数える。
type TeamRow struct {
	store.RankedTeam
	Members        []string `json:"members"`
	CompletedCount int      `json:"completedCount"`
}

// Snapshot は参加直後のクライアントへ送られる初期ペイロード。
// チャレンジ定義も丸ごと含むため、再接続したクライアントは
// このペイロードだけで表示を復元できる。
type Snapshot struct {
	CompetitionID   string                   `json:"leaderboardId"`
	CompetitionName string                   `json:"name"`
	Status          string                   `json:"status"`
	StartedAt       *time.Time               `json:"startedAt,omitempty"`
	EndedAt         *time.Time               `json:"endedAt,omitempty"`
	Challenges      *models.ChallengeSet     `json:"challenges"`
	ChallengeCount  int                      `json:"challengeCount"`
	TotalPoints     int                      `json:"totalPoints"`
	Teams           []TeamRow                `json:"teams"`
	Recent          []store.RecentCompletion `json:"recentCompletions"`
}

func (Snapshot) Name() string { return "leaderboard:initial" }

const recentLimit = 10

type Builder struct {
	store  store.Store
	logger *zap.Logger
}

func NewBuilder(s store.Store, logger *zap.Logger) *Builder {
	return &Builder{store: s, logger: logger}
}

// Build は大会の現在の全体像を読み出す。
// 順位・合計点は永続状態から毎回計算するため、放送を取りこぼした
// クライアントも参加し直せばここで追いつける。
func (b *Builder) Build(competitionID string) (*Snapshot, error) {
	comp, err := b.store.GetCompetition(competitionID)
	if err != nil {
		return nil, err
	}
	set, err := models.ParseChallengeSet(comp.ChallengesJSON)
	if err != nil {
		return nil, err
	}
	enabled := set.EnabledIDs()
	var totalPoints int
	for _, ch := range set.Challenges {
		if ch.IsEnabled() {
			totalPoints += ch.Points
		}
	}

	ranked, err := b.store.ListTeamsRanked(competitionID)
	if err != nil {
		return nil, err
	}
	teams := make([]TeamRow, 0, len(ranked))
	for _, row := range ranked {
		team, err := b.store.GetTeam(row.ID)
		if err != nil {
			return nil, err
		}
		completions, err := b.store.ListCompletions(row.ID)
		if err != nil {
			return nil, err
		}
		count := 0
		for _, c := range completions {
			// 無効化されたチャレンジの完了は数に含めない
			if enabled[c.ChallengeID] {
				count++
			}
		}
		teams = append(teams, TeamRow{
			RankedTeam:     row,
			Members:        team.Members(),
			CompletedCount: count,
		})
	}

	recent, err := b.store.ListRecentCompletions(competitionID, recentLimit)
	if err != nil {
		b.logger.Warn("Failed to load recent completions",
			zap.String("competitionId", competitionID), zap.Error(err))
		recent = nil
	}

	return &Snapshot{
		CompetitionID:   comp.ID,
		CompetitionName: comp.Name,
		Status:          comp.Status,
		StartedAt:       comp.StartedAt,
		EndedAt:         comp.EndedAt,
		Challenges:      set,
		ChallengeCount:  len(enabled),
		TotalPoints:     totalPoints,
		Teams:           teams,
		Recent:          recent,
	}, nil
}
