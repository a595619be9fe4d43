// ledger は得点操作の業務ルールを実装する。
// 完了・取り消し・ステータス変更・チーム登録はすべてここを経由し、
// 永続化はstoreパッケージに委譲する。
package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lbserver/models"
	"lbserver/store"
)

var (
	// ErrCompetitionEnded は終了済み大会への得点操作を拒否する際に返される。
	ErrCompetitionEnded = errors.New("ledger: competition has ended")
	// ErrChallengeNotFound は課題IDが大会の課題セットに存在しない場合に返される。
	ErrChallengeNotFound = errors.New("ledger: challenge not found")
	// ErrAlreadyCompleted は同じチームが同じ課題を二度完了しようとした場合に返される。
	ErrAlreadyCompleted = errors.New("ledger: challenge already completed")
	// ErrNotCompleted は未完了の課題を取り消そうとした場合に返される。
	ErrNotCompleted = errors.New("ledger: challenge not completed")
	// ErrForbidden は権限のない操作(他大会のチーム、ホストコード不一致)で返される。
	ErrForbidden = errors.New("ledger: operation not permitted")
	// ErrNotAcceptingTeams は募集中でない大会への参加要求で返される。
	ErrNotAcceptingTeams = errors.New("ledger: competition is not accepting teams")
	// ErrInvalidStatus は未知のステータス値で返される。
	ErrInvalidStatus = errors.New("ledger: invalid status")
	// ErrMemberExists は既に登録済みのメンバー名で返される。
	ErrMemberExists = errors.New("ledger: member name already registered")
	// ErrMemberNotFound は存在しないメンバーとしての参加要求で返される。
	ErrMemberNotFound = errors.New("ledger: member not found")
)

// Ledger は得点台帳。Storeの上に業務ルールを重ねる。
type Ledger struct {
	store  store.Store
	logger *zap.Logger
}

func New(s store.Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: s, logger: logger}
}

// CompletionResult は完了・取り消し操作の結果。放送用のペイロード組み立てに使う。
type CompletionResult struct {
	Team           *models.Team
	Competition    *models.Competition
	ChallengeID    string
	ChallengeTitle string
	Points         int
	CompletedAt    time.Time
}

// CompleteChallenge は課題完了を記録し、合計点を加算する。
// 記録と加算は同一トランザクションで行われ、一意制約により二重加点は
// 並行実行下でも高々一度しか成功しない。
func (l *Ledger) CompleteChallenge(competitionID, teamID, challengeID string) (*CompletionResult, error) {
	comp, err := l.store.GetCompetition(competitionID)
	if err != nil {
		return nil, err
	}
	if comp.Status == models.StatusEnded {
		return nil, ErrCompetitionEnded
	}
	set, err := models.ParseChallengeSet(comp.ChallengesJSON)
	if err != nil {
		return nil, err
	}
	ch := set.Find(challengeID)
	if ch == nil {
		return nil, ErrChallengeNotFound
	}

	team, err := l.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.CompetitionID != comp.ID {
		return nil, ErrForbidden
	}

	completedAt := time.Now()
	err = l.store.WithTransaction(func(tx store.Store) error {
		// 軽量な事前チェック。最終的な防衛線は一意制約。
		done, err := tx.HasCompletion(teamID, challengeID)
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyCompleted
		}
		if err := tx.AddCompletion(&models.Completion{
			TeamID:      teamID,
			ChallengeID: challengeID,
			Points:      ch.Points,
			CompletedAt: completedAt,
		}); err != nil {
			if errors.Is(err, store.ErrDuplicateCompletion) {
				return ErrAlreadyCompleted
			}
			return err
		}
		return tx.AddTeamPoints(teamID, ch.Points)
	})
	if err != nil {
		return nil, err
	}

	team.TotalPoints += ch.Points
	l.logger.Info("Challenge completed",
		zap.String("competitionId", competitionID),
		zap.String("teamId", teamID),
		zap.String("challengeId", challengeID),
		zap.Int("points", ch.Points))
	return &CompletionResult{
		Team:           team,
		Competition:    comp,
		ChallengeID:    challengeID,
		ChallengeTitle: ch.Title,
		Points:         ch.Points,
		CompletedAt:    completedAt,
	}, nil
}

// UncompleteChallenge は完了記録を取り消し、記録時の点数を減算する。
// 課題定義が後から変更されていても、加算した点と同じ点を戻す。
// 完了と違い、大会終了後の取り消しも受け付ける（訂正操作のため）。
func (l *Ledger) UncompleteChallenge(competitionID, teamID, challengeID string) (*CompletionResult, error) {
	comp, err := l.store.GetCompetition(competitionID)
	if err != nil {
		return nil, err
	}
	team, err := l.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.CompetitionID != comp.ID {
		return nil, ErrForbidden
	}

	var recorded int
	err = l.store.WithTransaction(func(tx store.Store) error {
		c, err := tx.GetCompletion(teamID, challengeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotCompleted
			}
			return err
		}
		recorded = c.Points
		if err := tx.DeleteCompletion(teamID, challengeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotCompleted
			}
			return err
		}
		return tx.AddTeamPoints(teamID, -recorded)
	})
	if err != nil {
		return nil, err
	}

	team.TotalPoints -= recorded

	// 通知用のタイトル。定義から消えた課題は空のまま流す。
	var title string
	if set, err := models.ParseChallengeSet(comp.ChallengesJSON); err == nil {
		if ch := set.Find(challengeID); ch != nil {
			title = ch.Title
		}
	}

	l.logger.Info("Challenge completion reverted",
		zap.String("competitionId", competitionID),
		zap.String("teamId", teamID),
		zap.String("challengeId", challengeID),
		zap.Int("points", recorded))
	return &CompletionResult{
		Team:           team,
		Competition:    comp,
		ChallengeID:    challengeID,
		ChallengeTitle: title,
		Points:         recorded,
	}, nil
}

// ChangeStatus は大会ステータスを更新する。ホストコードの一致が必要。
func (l *Ledger) ChangeStatus(competitionID, newStatus, callerHostCode string) (*models.Competition, error) {
	if !models.ValidStatus(newStatus) {
		return nil, ErrInvalidStatus
	}
	comp, err := l.store.GetCompetition(competitionID)
	if err != nil {
		return nil, err
	}
	if callerHostCode == "" || callerHostCode != comp.HostCode {
		return nil, ErrForbidden
	}
	updated, err := l.store.SetStatus(competitionID, newStatus)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Competition status changed",
		zap.String("competitionId", competitionID),
		zap.String("status", newStatus))
	return updated, nil
}

// RegisterTeam はアクセスコード経由でチームを登録する。
// 募集はactiveステータスの間のみ受け付ける。
func (l *Ledger) RegisterTeam(accessCode, teamName string, members []string) (*models.Team, *models.Competition, error) {
	comp, err := l.store.GetCompetitionByAccessCode(accessCode)
	if err != nil {
		return nil, nil, err
	}
	if comp.Status != models.StatusActive {
		return nil, nil, ErrNotAcceptingTeams
	}

	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, nil, err
	}
	team := &models.Team{
		ID:            uuid.New().String(),
		CompetitionID: comp.ID,
		Name:          teamName,
		MembersJSON:   string(membersJSON),
		TeamCode:      uuid.New().String(),
		TotalPoints:   0,
		CreatedAt:     time.Now(),
	}
	if err := l.store.CreateTeam(team); err != nil {
		return nil, nil, err
	}
	l.logger.Info("Team registered",
		zap.String("competitionId", comp.ID),
		zap.String("teamId", team.ID),
		zap.String("teamName", teamName))
	return team, comp, nil
}

// JoinAsMember はチームコード経由でメンバーとして参加する。
// 新規メンバーは名簿に追記し、既存メンバーは名簿との一致を確認する。
func (l *Ledger) JoinAsMember(teamCode, memberName string, isNew bool) (*models.Team, error) {
	team, err := l.store.GetTeamByCode(teamCode)
	if err != nil {
		return nil, err
	}
	members := team.Members()
	if isNew {
		for _, m := range members {
			if m == memberName {
				return nil, ErrMemberExists
			}
		}
		members = append(members, memberName)
		if err := team.SetMembers(members); err != nil {
			return nil, err
		}
		if err := l.store.UpdateTeamMembers(team.ID, team.MembersJSON); err != nil {
			return nil, err
		}
		return team, nil
	}
	for _, m := range members {
		if m == memberName {
			return team, nil
		}
	}
	return nil, ErrMemberNotFound
}

// Ranked は順位計算済みのチーム一覧を返す。放送とHTTP両方から使う。
func (l *Ledger) Ranked(competitionID string) ([]store.RankedTeam, error) {
	return l.store.ListTeamsRanked(competitionID)
}

// CategoryProgress はカテゴリ単位の完了状況。
type CategoryProgress struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// TeamProgress は1チームの進捗サマリ。
// 集計は有効なチャレンジのみを対象とし、取得済みの点は無効化後も残る。
type TeamProgress struct {
	TeamID         string              `json:"teamId"`
	TeamName       string              `json:"teamName"`
	CompetitionID  string              `json:"leaderboardId"`
	Rank           int                 `json:"rank"`
	TotalPoints    int                 `json:"totalPoints"`
	PossiblePoints int                 `json:"possiblePoints"`
	Percent        int                 `json:"percent"`
	CompletedCount int                 `json:"completedCount"`
	ChallengeCount int                 `json:"challengeCount"`
	Categories     []CategoryProgress  `json:"categories"`
	Completions    []models.Completion `json:"completions"`
}

// Progress はチームの進捗をカテゴリ別集計・順位・達成率込みで返す。
func (l *Ledger) Progress(teamID string) (*TeamProgress, error) {
	team, err := l.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	comp, err := l.store.GetCompetition(team.CompetitionID)
	if err != nil {
		return nil, err
	}
	set, err := models.ParseChallengeSet(comp.ChallengesJSON)
	if err != nil {
		return nil, err
	}
	completions, err := l.store.ListCompletions(teamID)
	if err != nil {
		return nil, err
	}

	completedIDs := make(map[string]bool, len(completions))
	for _, c := range completions {
		completedIDs[c.ChallengeID] = true
	}

	categories := make([]CategoryProgress, 0, len(set.Categories))
	byCategory := make(map[string]*CategoryProgress, len(set.Categories))
	for _, cat := range set.Categories {
		categories = append(categories, CategoryProgress{CategoryID: cat.ID, Name: cat.Name})
		byCategory[cat.ID] = &categories[len(categories)-1]
	}

	var possiblePoints, completedCount, challengeCount int
	for _, ch := range set.Challenges {
		if !ch.IsEnabled() {
			continue
		}
		challengeCount++
		possiblePoints += ch.Points
		cat := byCategory[ch.Category]
		if cat == nil {
			continue
		}
		cat.Total++
		if completedIDs[ch.ID] {
			cat.Completed++
			completedCount++
		}
	}

	percent := 0
	if possiblePoints > 0 {
		percent = team.TotalPoints * 100 / possiblePoints
	}

	rank := 0
	ranked, err := l.store.ListTeamsRanked(team.CompetitionID)
	if err != nil {
		return nil, err
	}
	for _, row := range ranked {
		if row.ID == teamID {
			rank = row.Rank
			break
		}
	}

	return &TeamProgress{
		TeamID:         team.ID,
		TeamName:       team.Name,
		CompetitionID:  team.CompetitionID,
		Rank:           rank,
		TotalPoints:    team.TotalPoints,
		PossiblePoints: possiblePoints,
		Percent:        percent,
		CompletedCount: completedCount,
		ChallengeCount: challengeCount,
		Categories:     categories,
		Completions:    completions,
	}, nil
}
