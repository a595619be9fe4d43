package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lbserver/models"
	"lbserver/store"
)

const testChallenges = `{
	"metadata": {"title": "Test CTF", "description": "", "version": "1"},
	"categories": [{"id": "web", "name": "Web", "icon": "globe", "color": "#00f"}],
	"challenges": [
		{"id": "web-1", "category": "web", "title": "First", "short_name": "first", "description": "", "skill_level": "easy", "points": 100},
		{"id": "web-2", "category": "web", "title": "Second", "short_name": "second", "description": "", "skill_level": "hard", "points": 250},
		{"id": "web-3", "category": "web", "title": "Hidden", "short_name": "hidden", "description": "", "skill_level": "easy", "points": 50, "enabled": false}
	]
}`

type fixture struct {
	ledger *Ledger
	store  *store.GormStore
	comp   *models.Competition
	team   *models.Team
}

func newFixture(t *testing.T) *fixture {
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

	s := store.NewGormStore(db)
	comp := &models.Competition{
		ID:             uuid.New().String(),
		Name:           "ledger test",
		HostCode:       uuid.New().String(),
		AccessCode:     "ABC123",
		ChallengesJSON: testChallenges,
		Status:         models.StatusActive,
	}
	if err := s.CreateCompetition(comp); err != nil {
		t.Fatalf("create competition: %v", err)
	}
	team := &models.Team{
		ID:            uuid.New().String(),
		CompetitionID: comp.ID,
		Name:          "testers",
		MembersJSON:   `["alice","bob"]`,
		TeamCode:      uuid.New().String(),
		CreatedAt:     time.Now(),
	}
	if err := s.CreateTeam(team); err != nil {
		t.Fatalf("create team: %v", err)
	}
	return &fixture{
		ledger: New(s, zap.NewNop()),
		store:  s,
		comp:   comp,
		team:   team,
	}
}

func TestCompleteChallengeAddsPoints(t *testing.T) {
	f := newFixture(t)

	res, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-1")
	if err != nil {
		t.Fatalf("CompleteChallenge: %v", err)
	}
	if res.Points != 100 {
		t.Errorf("Points = %d, want 100", res.Points)
	}
	got, err := f.store.GetTeam(f.team.ID)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.TotalPoints != 100 {
		t.Errorf("TotalPoints = %d, want 100", got.TotalPoints)
	}
}

func TestCompleteChallengeAtMostOnce(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-1"); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-1"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("want ErrAlreadyCompleted, got %v", err)
	}
	got, _ := f.store.GetTeam(f.team.ID)
	if got.TotalPoints != 100 {
		t.Errorf("TotalPoints = %d after duplicate attempt, want 100", got.TotalPoints)
	}
}

func TestCompleteChallengeConcurrent(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-2")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrAlreadyCompleted) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d completions succeeded, want exactly 1", succeeded)
	}
	got, _ := f.store.GetTeam(f.team.ID)
	if got.TotalPoints != 250 {
		t.Errorf("TotalPoints = %d, want 250", got.TotalPoints)
	}
}

func TestUncompleteSubtractsRecordedPoints(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-2"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// 完了後に課題の配点が変わっても、戻すのは記録時の点数
	changed := `{
		"metadata": {"title": "Test CTF", "description": "", "version": "2"},
		"categories": [{"id": "web", "name": "Web", "icon": "globe", "color": "#00f"}],
		"challenges": [{"id": "web-2", "category": "web", "title": "Second", "short_name": "second", "description": "", "skill_level": "hard", "points": 999}]
	}`
	if err := f.store.UpdateChallenges(f.comp.ID, changed); err != nil {
		t.Fatalf("update challenges: %v", err)
	}

	res, err := f.ledger.UncompleteChallenge(f.comp.ID, f.team.ID, "web-2")
	if err != nil {
		t.Fatalf("UncompleteChallenge: %v", err)
	}
	if res.Points != 250 {
		t.Errorf("reverted points = %d, want 250", res.Points)
	}
	got, _ := f.store.GetTeam(f.team.ID)
	if got.TotalPoints != 0 {
		t.Errorf("TotalPoints = %d, want 0", got.TotalPoints)
	}

	if _, err := f.ledger.UncompleteChallenge(f.comp.ID, f.team.ID, "web-2"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("second revert: want ErrNotCompleted, got %v", err)
	}
}

func TestCompleteDisabledChallengeStillCounts(t *testing.T) {
	f := newFixture(t)

	res, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-3")
	if err != nil {
		t.Fatalf("CompleteChallenge on disabled challenge: %v", err)
	}
	if res.Points != 50 {
		t.Errorf("Points = %d, want 50", res.Points)
	}
}

func TestCompleteUnknownChallenge(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "nope"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("want ErrChallengeNotFound, got %v", err)
	}
}

func TestEndedCompetitionRejectsScoring(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.ChangeStatus(f.comp.ID, models.StatusEnded, f.comp.HostCode); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-1"); !errors.Is(err, ErrCompetitionEnded) {
		t.Fatalf("complete: want ErrCompetitionEnded, got %v", err)
	}
}

// 取り消しは訂正操作なので、大会終了後でも受け付ける。
func TestUncompleteAllowedAfterEnd(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, "web-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.ledger.ChangeStatus(f.comp.ID, models.StatusEnded, f.comp.HostCode); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	res, err := f.ledger.UncompleteChallenge(f.comp.ID, f.team.ID, "web-1")
	if err != nil {
		t.Fatalf("uncomplete after end: %v", err)
	}
	if res.Points != 100 {
		t.Errorf("reverted points = %d, want 100", res.Points)
	}
	got, _ := f.store.GetTeam(f.team.ID)
	if got.TotalPoints != 0 {
		t.Errorf("TotalPoints = %d, want 0", got.TotalPoints)
	}
}

func TestChangeStatusRequiresHostCode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.ChangeStatus(f.comp.ID, models.StatusPaused, "wrong-code"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if _, err := f.ledger.ChangeStatus(f.comp.ID, "bogus", f.comp.HostCode); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("want ErrInvalidStatus, got %v", err)
	}
}

func TestRegisterTeamOnlyWhileActive(t *testing.T) {
	f := newFixture(t)

	team, comp, err := f.ledger.RegisterTeam("ABC123", "newcomers", []string{"carol"})
	if err != nil {
		t.Fatalf("RegisterTeam: %v", err)
	}
	if comp.ID != f.comp.ID {
		t.Errorf("competition = %s, want %s", comp.ID, f.comp.ID)
	}
	if team.TeamCode == "" || team.ID == "" {
		t.Error("team codes not assigned")
	}

	if _, _, err := f.ledger.RegisterTeam("ABC123", "newcomers", []string{"dave"}); !errors.Is(err, store.ErrNameConflict) {
		t.Fatalf("duplicate name: want ErrNameConflict, got %v", err)
	}

	if _, err := f.ledger.ChangeStatus(f.comp.ID, models.StatusStarted, f.comp.HostCode); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if _, _, err := f.ledger.RegisterTeam("ABC123", "latecomers", []string{"erin"}); !errors.Is(err, ErrNotAcceptingTeams) {
		t.Fatalf("want ErrNotAcceptingTeams, got %v", err)
	}
}

func TestProgressSummarizesByCategory(t *testing.T) {
	f := newFixture(t)
	// web-1(100pt)とweb-3(50pt, 無効)を完了。有効分のみ集計対象になる。
	for _, id := range []string{"web-1", "web-3"} {
		if _, err := f.ledger.CompleteChallenge(f.comp.ID, f.team.ID, id); err != nil {
			t.Fatalf("complete %s: %v", id, err)
		}
	}

	p, err := f.ledger.Progress(f.team.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.TeamID != f.team.ID || p.CompetitionID != f.comp.ID {
		t.Errorf("identity = %+v", p)
	}
	if p.Rank != 1 {
		t.Errorf("Rank = %d, want 1", p.Rank)
	}
	// 有効チャレンジはweb-1とweb-2の2問、計350pt
	if p.ChallengeCount != 2 || p.PossiblePoints != 350 {
		t.Errorf("ChallengeCount = %d, PossiblePoints = %d", p.ChallengeCount, p.PossiblePoints)
	}
	if p.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d, want 1", p.CompletedCount)
	}
	// 獲得150ptのうち有効総点350ptに対する割合
	if p.TotalPoints != 150 || p.Percent != 150*100/350 {
		t.Errorf("TotalPoints = %d, Percent = %d", p.TotalPoints, p.Percent)
	}
	if len(p.Categories) != 1 {
		t.Fatalf("Categories = %v", p.Categories)
	}
	cat := p.Categories[0]
	if cat.CategoryID != "web" || cat.Completed != 1 || cat.Total != 2 {
		t.Errorf("category = %+v", cat)
	}
	if len(p.Completions) != 2 {
		t.Errorf("Completions = %d records, want 2", len(p.Completions))
	}
}

func TestJoinAsMember(t *testing.T) {
	f := newFixture(t)

	team, err := f.ledger.JoinAsMember(f.team.TeamCode, "carol", true)
	if err != nil {
		t.Fatalf("join as new member: %v", err)
	}
	members := team.Members()
	if len(members) != 3 {
		t.Fatalf("members = %v, want 3 entries", members)
	}

	if _, err := f.ledger.JoinAsMember(f.team.TeamCode, "carol", true); !errors.Is(err, ErrMemberExists) {
		t.Fatalf("want ErrMemberExists, got %v", err)
	}
	if _, err := f.ledger.JoinAsMember(f.team.TeamCode, "alice", false); err != nil {
		t.Fatalf("join as existing member: %v", err)
	}
	if _, err := f.ledger.JoinAsMember(f.team.TeamCode, "mallory", false); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound, got %v", err)
	}
}
