package auth

import (
	"errors"
	"testing"

	"lbserver/models"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateSessionToken(models.SessionClaims{
		Role:          models.RoleTeam,
		TeamID:        "team-1",
		CompetitionID: "comp-1",
	})
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}

	claims, err := ParseSessionToken(token)
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	if claims.Role != models.RoleTeam || claims.TeamID != "team-1" || claims.CompetitionID != "comp-1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt == 0 {
		t.Error("ExpiresAt not set")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseSessionToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: want ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	token, err := GenerateSessionToken(models.SessionClaims{
		Role:          models.RoleHost,
		HostCode:      "host-code",
		CompetitionID: "comp-1",
	})
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := ParseSessionToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
