// store はリーダーボードの永続化層。
// 上位層(ledger, snapshot, handlers)はこのインターフェース越しにDBへアクセスする。
package store

import (
	"errors"
	"time"

	"lbserver/models"
)

var (
	// ErrNotFound は対象レコードが存在しない場合に返される。
	ErrNotFound = errors.New("store: record not found")
	// ErrNameConflict は同一大会内でチーム名が重複した場合に返される。
	ErrNameConflict = errors.New("store: team name already taken")
	// ErrDuplicateCompletion は同一チーム・同一課題の完了が既に記録済みの場合に返される。
	// 一意制約違反をトランザクション内で検出した結果であり、二重加点の最終防衛線。
	ErrDuplicateCompletion = errors.New("store: completion already recorded")
)

// RankedTeam は順位計算済みのチーム行。
// Rankはtotal_points降順、created_at昇順で振られる。
type RankedTeam struct {
	Rank        int       `json:"rank"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TotalPoints int       `json:"totalPoints"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecentCompletion は直近の完了イベントをチーム名・課題名付きで表す。
type RecentCompletion struct {
	TeamID      string    `json:"teamId"`
	TeamName    string    `json:"teamName"`
	ChallengeID string    `json:"challengeId"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completedAt"`
}

// Store は永続化操作の集合。
// WithTransaction内で渡されるStoreは同一トランザクションに束縛される。
type Store interface {
	CreateCompetition(comp *models.Competition) error
	GetCompetition(id string) (*models.Competition, error)
	GetCompetitionByAccessCode(code string) (*models.Competition, error)
	GetCompetitionByHostCode(code string) (*models.Competition, error)
	SetStatus(id string, status string) (*models.Competition, error)
	UpdateChallenges(id string, challengesJSON string) error
	ListStaleActive(before time.Time) ([]models.Competition, error)
	DeleteEndedBefore(before time.Time) (int64, error)

	CreateTeam(team *models.Team) error
	GetTeam(id string) (*models.Team, error)
	GetTeamByCode(code string) (*models.Team, error)
	UpdateTeamMembers(id string, membersJSON string) error
	AddTeamPoints(id string, delta int) error
	ListTeamsRanked(competitionID string) ([]RankedTeam, error)

	AddCompletion(c *models.Completion) error
	DeleteCompletion(teamID, challengeID string) error
	GetCompletion(teamID, challengeID string) (*models.Completion, error)
	HasCompletion(teamID, challengeID string) (bool, error)
	ListCompletions(teamID string) ([]models.Completion, error)
	ListRecentCompletions(competitionID string, limit int) ([]RecentCompletion, error)

	WithTransaction(fn func(tx Store) error) error
}
