package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"lbserver/models"
)

// GormStore はgormによるStore実装。PostgreSQLとSQLiteの両方で動作する。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateCompetition(comp *models.Competition) error {
	return s.db.Create(comp).Error
}

func (s *GormStore) GetCompetition(id string) (*models.Competition, error) {
	var comp models.Competition
	if err := s.db.First(&comp, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &comp, nil
}

func (s *GormStore) GetCompetitionByAccessCode(code string) (*models.Competition, error) {
	var comp models.Competition
	if err := s.db.First(&comp, "access_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &comp, nil
}

func (s *GormStore) GetCompetitionByHostCode(code string) (*models.Competition, error) {
	var comp models.Competition
	if err := s.db.First(&comp, "host_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &comp, nil
}

// SetStatus はステータスを更新し、初回遷移時のみタイムスタンプを刻印する。
// started_atは最初にstartedになった時刻、ended_atは最初にendedになった時刻を保持する。
func (s *GormStore) SetStatus(id string, status string) (*models.Competition, error) {
	var comp models.Competition
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comp, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		updates := map[string]interface{}{"status": status}
		now := time.Now()
		if status == models.StatusStarted && comp.StartedAt == nil {
			updates["started_at"] = now
			comp.StartedAt = &now
		}
		if status == models.StatusEnded && comp.EndedAt == nil {
			updates["ended_at"] = now
			comp.EndedAt = &now
		}
		if err := tx.Model(&models.Competition{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		comp.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comp, nil
}

func (s *GormStore) UpdateChallenges(id string, challengesJSON string) error {
	res := s.db.Model(&models.Competition{}).Where("id = ?", id).
		Update("challenges_json", challengesJSON)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaleActive は指定時刻より前に作成され、まだ終了していない大会を返す。
// クリーンアップジョブから呼ばれる。
func (s *GormStore) ListStaleActive(before time.Time) ([]models.Competition, error) {
	var comps []models.Competition
	err := s.db.Where("status <> ? AND created_at < ?", models.StatusEnded, before).
		Find(&comps).Error
	return comps, err
}

// DeleteEndedBefore は終了から一定期間経過した大会と関連レコードを削除する。
func (s *GormStore) DeleteEndedBefore(before time.Time) (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var comps []models.Competition
		if err := tx.Where("status = ? AND ended_at < ?", models.StatusEnded, before).
			Find(&comps).Error; err != nil {
			return err
		}
		for _, comp := range comps {
			var teamIDs []string
			if err := tx.Model(&models.Team{}).Where("competition_id = ?", comp.ID).
				Pluck("id", &teamIDs).Error; err != nil {
				return err
			}
			if len(teamIDs) > 0 {
				if err := tx.Where("team_id IN ?", teamIDs).
					Delete(&models.Completion{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("competition_id = ?", comp.ID).
				Delete(&models.Team{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&comp).Error; err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (s *GormStore) CreateTeam(team *models.Team) error {
	if err := s.db.Create(team).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrNameConflict
		}
		return err
	}
	return nil
}

func (s *GormStore) GetTeam(id string) (*models.Team, error) {
	var team models.Team
	if err := s.db.First(&team, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (s *GormStore) GetTeamByCode(code string) (*models.Team, error) {
	var team models.Team
	if err := s.db.First(&team, "team_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (s *GormStore) UpdateTeamMembers(id string, membersJSON string) error {
	res := s.db.Model(&models.Team{}).Where("id = ?", id).
		Update("members_json", membersJSON)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddTeamPoints は非正規化された合計点をアトミックに加算する。
// 負のdeltaで取り消しにも使う。
func (s *GormStore) AddTeamPoints(id string, delta int) error {
	res := s.db.Model(&models.Team{}).Where("id = ?", id).
		Update("total_points", gorm.Expr("total_points + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTeamsRanked は順位付きの全チームを返す。
// 同点の場合は登録が早いチームが上位になる。
func (s *GormStore) ListTeamsRanked(competitionID string) ([]RankedTeam, error) {
	var rows []RankedTeam
	err := s.db.Raw(`
		SELECT
			ROW_NUMBER() OVER (ORDER BY total_points DESC, created_at ASC) AS "rank",
			id, name, total_points, created_at
		FROM teams
		WHERE competition_id = ?
		ORDER BY total_points DESC, created_at ASC`, competitionID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) AddCompletion(c *models.Completion) error {
	if err := s.db.Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateCompletion
		}
		return err
	}
	return nil
}

func (s *GormStore) DeleteCompletion(teamID, challengeID string) error {
	res := s.db.Where("team_id = ? AND challenge_id = ?", teamID, challengeID).
		Delete(&models.Completion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetCompletion(teamID, challengeID string) (*models.Completion, error) {
	var c models.Completion
	err := s.db.First(&c, "team_id = ? AND challenge_id = ?", teamID, challengeID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) HasCompletion(teamID, challengeID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Completion{}).
		Where("team_id = ? AND challenge_id = ?", teamID, challengeID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ListCompletions(teamID string) ([]models.Completion, error) {
	var list []models.Completion
	err := s.db.Where("team_id = ?", teamID).
		Order("completed_at ASC").Find(&list).Error
	return list, err
}

// ListRecentCompletions は大会全体の直近の完了をチーム名付きで返す。
func (s *GormStore) ListRecentCompletions(competitionID string, limit int) ([]RecentCompletion, error) {
	var rows []RecentCompletion
	err := s.db.Raw(`
		SELECT c.team_id, t.name AS team_name, c.challenge_id, c.points, c.completed_at
		FROM completions c
		JOIN teams t ON t.id = c.team_id
		WHERE t.competition_id = ?
		ORDER BY c.completed_at DESC
		LIMIT ?`, competitionID, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// WithTransaction はfnを単一トランザクション内で実行する。
// fnがエラーを返した場合は全変更がロールバックされる。
func (s *GormStore) WithTransaction(fn func(tx Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
