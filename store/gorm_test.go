package store

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lbserver/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Competition{}, &models.Team{}, &models.Completion{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(db)
}

func seedCompetition(t *testing.T, s *GormStore) *models.Competition {
	t.Helper()
	comp := &models.Competition{
		ID:             uuid.New().String(),
		Name:           "test cup",
		HostCode:       uuid.New().String(),
		AccessCode:     uuid.New().String()[:6],
		ChallengesJSON: "{}",
		Status:         models.StatusActive,
	}
	if err := s.CreateCompetition(comp); err != nil {
		t.Fatalf("create competition: %v", err)
	}
	return comp
}

func seedTeam(t *testing.T, s *GormStore, compID, name string, points int, createdAt time.Time) *models.Team {
	t.Helper()
	team := &models.Team{
		ID:            uuid.New().String(),
		CompetitionID: compID,
		Name:          name,
		MembersJSON:   `["alice"]`,
		TeamCode:      uuid.New().String(),
		TotalPoints:   points,
		CreatedAt:     createdAt,
	}
	if err := s.CreateTeam(team); err != nil {
		t.Fatalf("create team %s: %v", name, err)
	}
	return team
}

func TestListTeamsRankedOrdering(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedTeam(t, s, comp.ID, "bravo", 30, base.Add(2*time.Minute))
	seedTeam(t, s, comp.ID, "alpha", 30, base)
	seedTeam(t, s, comp.ID, "charlie", 50, base.Add(time.Minute))
	seedTeam(t, s, comp.ID, "delta", 0, base.Add(3*time.Minute))

	rows, err := s.ListTeamsRanked(comp.ID)
	if err != nil {
		t.Fatalf("ListTeamsRanked: %v", err)
	}
	want := []struct {
		name string
		rank int
	}{
		{"charlie", 1},
		{"alpha", 2},
		{"bravo", 3},
		{"delta", 4},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i].Name != w.name || rows[i].Rank != w.rank {
			t.Errorf("row %d: got (%s, %d), want (%s, %d)",
				i, rows[i].Name, rows[i].Rank, w.name, w.rank)
		}
	}
}

func TestCreateTeamNameConflict(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)
	other := seedCompetition(t, s)

	now := time.Now()
	seedTeam(t, s, comp.ID, "dupes", 0, now)

	dup := &models.Team{
		ID:            uuid.New().String(),
		CompetitionID: comp.ID,
		Name:          "dupes",
		TeamCode:      uuid.New().String(),
		CreatedAt:     now,
	}
	if err := s.CreateTeam(dup); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("want ErrNameConflict, got %v", err)
	}

	// 別大会なら同名でよい
	seedTeam(t, s, other.ID, "dupes", 0, now)
}

func TestAddCompletionDuplicate(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)
	team := seedTeam(t, s, comp.ID, "solo", 0, time.Now())

	c := &models.Completion{TeamID: team.ID, ChallengeID: "web-1", Points: 100, CompletedAt: time.Now()}
	if err := s.AddCompletion(c); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	again := &models.Completion{TeamID: team.ID, ChallengeID: "web-1", Points: 100, CompletedAt: time.Now()}
	if err := s.AddCompletion(again); !errors.Is(err, ErrDuplicateCompletion) {
		t.Fatalf("want ErrDuplicateCompletion, got %v", err)
	}

	ok, err := s.HasCompletion(team.ID, "web-1")
	if err != nil || !ok {
		t.Fatalf("HasCompletion = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestSetStatusStampsTimestampsOnce(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)

	started, err := s.SetStatus(comp.ID, models.StatusStarted)
	if err != nil {
		t.Fatalf("SetStatus started: %v", err)
	}
	if started.StartedAt == nil {
		t.Fatal("StartedAt not stamped")
	}
	first := *started.StartedAt

	// 一時停止して再開しても開始時刻は変わらない
	if _, err := s.SetStatus(comp.ID, models.StatusPaused); err != nil {
		t.Fatalf("SetStatus paused: %v", err)
	}
	again, err := s.SetStatus(comp.ID, models.StatusStarted)
	if err != nil {
		t.Fatalf("SetStatus restarted: %v", err)
	}
	if again.StartedAt == nil || !again.StartedAt.Equal(first) {
		t.Fatalf("StartedAt changed on restart: %v vs %v", again.StartedAt, first)
	}

	ended, err := s.SetStatus(comp.ID, models.StatusEnded)
	if err != nil {
		t.Fatalf("SetStatus ended: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("EndedAt not stamped")
	}
}

func TestListRecentCompletions(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t1 := seedTeam(t, s, comp.ID, "one", 0, base)
	t2 := seedTeam(t, s, comp.ID, "two", 0, base)

	for i, c := range []models.Completion{
		{TeamID: t1.ID, ChallengeID: "a", Points: 10},
		{TeamID: t2.ID, ChallengeID: "a", Points: 10},
		{TeamID: t1.ID, ChallengeID: "b", Points: 20},
	} {
		c.CompletedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.AddCompletion(&c); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
	}

	rows, err := s.ListRecentCompletions(comp.ID, 2)
	if err != nil {
		t.Fatalf("ListRecentCompletions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ChallengeID != "b" || rows[0].TeamName != "one" {
		t.Errorf("newest row = %+v", rows[0])
	}
	if rows[1].TeamName != "two" {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestDeleteCompletionReversal(t *testing.T) {
	s := newTestStore(t)
	comp := seedCompetition(t, s)
	team := seedTeam(t, s, comp.ID, "rollback", 0, time.Now())

	c := &models.Completion{TeamID: team.ID, ChallengeID: "x", Points: 40, CompletedAt: time.Now()}
	if err := s.AddCompletion(c); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddTeamPoints(team.ID, 40); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := s.DeleteCompletion(team.ID, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.AddTeamPoints(team.ID, -40); err != nil {
		t.Fatalf("subtract points: %v", err)
	}
	got, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if got.TotalPoints != 0 {
		t.Fatalf("TotalPoints = %d, want 0", got.TotalPoints)
	}
	if err := s.DeleteCompletion(team.ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}
