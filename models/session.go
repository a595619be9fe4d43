package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// セッションの種別。リクエスト/ソケット単位で明示的に引き回す。
const (
	RoleTeam   = "team"
	RoleHost   = "host"
	RoleViewer = "viewer"
)

// SessionClaims はセッショントークンに内包される認証コンテキストです。
// チームセッションはTeamID、ホストセッションはHostCodeを持つ。
type SessionClaims struct {
	Role          string `json:"role"`
	TeamID        string `json:"teamId,omitempty"`
	HostCode      string `json:"hostCode,omitempty"`
	CompetitionID string `json:"leaderboardId"`
	jwt.StandardClaims
}
