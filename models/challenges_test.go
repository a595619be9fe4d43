package models

import (
	"errors"
	"strings"
	"testing"
)

func validSet() *ChallengeSet {
	return &ChallengeSet{
		Metadata: ChallengeMetadata{Title: "CTF", Description: "desc", Version: "1"},
		Categories: []Category{
			{ID: "web", Name: "Web", Icon: "globe", Color: "#00f"},
		},
		Challenges: []Challenge{
			{ID: "web-1", Category: "web", Title: "One", ShortName: "one",
				Description: "d", SkillLevel: "easy", Points: 100},
			{ID: "web-2", Category: "web", Title: "Two", ShortName: "two",
				Description: "d", SkillLevel: "hard", Points: 200},
		},
	}
}

func TestValidateBackfillsTotalPoints(t *testing.T) {
	set := validSet()
	if err := set.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if set.Metadata.TotalPoints != 300 {
		t.Errorf("TotalPoints = %d, want 300", set.Metadata.TotalPoints)
	}
}

func TestValidateRejectsBadSets(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ChallengeSet)
		want   string
	}{
		{"missing metadata", func(s *ChallengeSet) { s.Metadata.Title = "" }, "metadata"},
		{"no categories", func(s *ChallengeSet) { s.Categories = nil }, "category"},
		{"duplicate category", func(s *ChallengeSet) {
			s.Categories = append(s.Categories, s.Categories[0])
		}, "duplicate category"},
		{"no challenges", func(s *ChallengeSet) { s.Challenges = nil }, "challenge"},
		{"duplicate challenge", func(s *ChallengeSet) {
			s.Challenges = append(s.Challenges, s.Challenges[0])
		}, "duplicate challenge"},
		{"unknown category ref", func(s *ChallengeSet) { s.Challenges[0].Category = "pwn" }, "unknown category"},
		{"zero points", func(s *ChallengeSet) { s.Challenges[0].Points = 0 }, "positive points"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := validSet()
			tc.mutate(set)
			err := set.Validate()
			if !errors.Is(err, ErrInvalidChallenges) {
				t.Fatalf("want ErrInvalidChallenges, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseChallengeSetBadJSON(t *testing.T) {
	if _, err := ParseChallengeSet("{not json"); !errors.Is(err, ErrInvalidChallenges) {
		t.Fatalf("want ErrInvalidChallenges, got %v", err)
	}
}

func TestEnabledDefaultsTrue(t *testing.T) {
	off := false
	set := validSet()
	set.Challenges[1].Enabled = &off

	if !set.Challenges[0].IsEnabled() {
		t.Error("unset enabled flag should mean enabled")
	}
	ids := set.EnabledIDs()
	if !ids["web-1"] || ids["web-2"] {
		t.Errorf("EnabledIDs = %v", ids)
	}
	if got := len(set.EnabledChallenges()); got != 1 {
		t.Errorf("EnabledChallenges = %d entries, want 1", got)
	}
	// Findは無効チャレンジも見つける
	if set.Find("web-2") == nil {
		t.Error("Find should return disabled challenges")
	}
	if set.Find("missing") != nil {
		t.Error("Find returned a challenge for unknown id")
	}
}
