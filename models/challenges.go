package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// チャレンジ定義の検証エラー。HTTP層では400として扱う。
var ErrInvalidChallenges = errors.New("invalid challenges format")

// ChallengeSet は大会ごとにアップロードされるチャレンジ定義JSONの型付き表現。
// DBにはシリアライズされたまま保存し、読み出し時に一度だけパースする。
type ChallengeSet struct {
	Metadata   ChallengeMetadata `json:"metadata"`
	Categories []Category        `json:"categories"`
	Challenges []Challenge       `json:"challenges"`
}

type ChallengeMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
	TotalPoints int    `json:"total_points,omitempty"`
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

type Challenge struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
	SkillLevel  string `json:"skill_level"`
	Points      int    `json:"points"`
	// Enabledが未指定の場合は有効扱い。無効化されたチャレンジは
	// 集計・表示から除外されるが、完了済みレコードは残る。
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled は省略時defaultをtrueとして有効フラグを返します。
func (c Challenge) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ParseChallengeSet は保存済みのチャレンジ定義JSONをデコードします。
// 保存時に検証済みの前提なので、ここではスキーマ検証を繰り返さない。
func ParseChallengeSet(raw string) (*ChallengeSet, error) {
	var set ChallengeSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChallenges, err)
	}
	return &set, nil
}

// Find はIDでチャレンジを検索します。enabledフラグは見ない
// （無効化されたチャレンジも完了操作自体は受け付ける仕様）。
func (s *ChallengeSet) Find(id string) *Challenge {
	for i := range s.Challenges {
		if s.Challenges[i].ID == id {
			return &s.Challenges[i]
		}
	}
	return nil
}

// EnabledIDs は有効なチャレンジIDの集合を返します。集計用。
func (s *ChallengeSet) EnabledIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Challenges))
	for _, c := range s.Challenges {
		if c.IsEnabled() {
			ids[c.ID] = true
		}
	}
	return ids
}

// EnabledChallenges は有効なチャレンジのみを返します。
func (s *ChallengeSet) EnabledChallenges() []Challenge {
	var enabled []Challenge
	for _, c := range s.Challenges {
		if c.IsEnabled() {
			enabled = append(enabled, c)
		}
	}
	return enabled
}

// Validate はアップロードされたチャレンジ定義のスキーマ検証を行います。
// metadata/categories/challengesの必須項目、ID重複、カテゴリ参照、
// 正の点数をチェックし、metadata.total_pointsが未設定なら補完する。
func (s *ChallengeSet) Validate() error {
	if s.Metadata.Title == "" || s.Metadata.Description == "" || s.Metadata.Version == "" {
		return fmt.Errorf("%w: metadata requires title, description and version", ErrInvalidChallenges)
	}

	if len(s.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidChallenges)
	}
	categoryIDs := make(map[string]bool, len(s.Categories))
	for _, category := range s.Categories {
		if category.ID == "" || category.Name == "" || category.Icon == "" || category.Color == "" {
			return fmt.Errorf("%w: category requires id, name, icon and color", ErrInvalidChallenges)
		}
		if categoryIDs[category.ID] {
			return fmt.Errorf("%w: duplicate category id %q", ErrInvalidChallenges, category.ID)
		}
		categoryIDs[category.ID] = true
	}

	if len(s.Challenges) == 0 {
		return fmt.Errorf("%w: at least one challenge is required", ErrInvalidChallenges)
	}
	challengeIDs := make(map[string]bool, len(s.Challenges))
	for _, challenge := range s.Challenges {
		if challenge.ID == "" || challenge.Category == "" || challenge.Title == "" ||
			challenge.ShortName == "" || challenge.Description == "" || challenge.SkillLevel == "" {
			return fmt.Errorf("%w: challenge %q is missing required fields", ErrInvalidChallenges, challenge.ID)
		}
		if challengeIDs[challenge.ID] {
			return fmt.Errorf("%w: duplicate challenge id %q", ErrInvalidChallenges, challenge.ID)
		}
		challengeIDs[challenge.ID] = true
		if !categoryIDs[challenge.Category] {
			return fmt.Errorf("%w: challenge %q references unknown category %q", ErrInvalidChallenges, challenge.ID, challenge.Category)
		}
		if challenge.Points <= 0 {
			return fmt.Errorf("%w: challenge %q must have positive points", ErrInvalidChallenges, challenge.ID)
		}
	}

	if s.Metadata.TotalPoints == 0 {
		total := 0
		for _, c := range s.Challenges {
			total += c.Points
		}
		s.Metadata.TotalPoints = total
	}
	return nil
}
