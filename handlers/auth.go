package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lbserver/auth"
	"lbserver/models"
	"lbserver/store"
)

// HostAuth はホストコードを検証してホストセッショントークンを発行する。
func HostAuth(c *gin.Context, s store.Store, logger *zap.Logger) {
	var req models.HostAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comp, err := s.GetCompetitionByHostCode(req.HostCode)
	if err != nil {
		// コードの総当たりに存在の有無を漏らさない
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host code"})
		return
	}

	token, err := auth.GenerateSessionToken(models.SessionClaims{
		Role:          models.RoleHost,
		HostCode:      comp.HostCode,
		CompetitionID: comp.ID,
	})
	if err != nil {
		logger.Error("Failed to generate host token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":         token,
		"leaderboardId": comp.ID,
		"name":          comp.Name,
		"accessCode":    comp.AccessCode,
		"status":        comp.Status,
	})
}

// SessionInfo は認証済みセッションの中身をそのまま返す。
// フロント側のリロード時にロールと帰属先を復元するために使う。
func SessionInfo(c *gin.Context) {
	claims := sessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}
	resp := gin.H{
		"role":          claims.Role,
		"leaderboardId": claims.CompetitionID,
	}
	if claims.TeamID != "" {
		resp["teamId"] = claims.TeamID
	}
	if claims.HostCode != "" {
		resp["hostCode"] = claims.HostCode
	}
	c.JSON(http.StatusOK, resp)
}

// Logout はセッションの破棄。トークン自体は期限切れまで有効なので、
// クライアント側での破棄を成立とみなして応答する。
func Logout(c *gin.Context, logger *zap.Logger) {
	claims := sessionClaims(c)
	if claims != nil {
		logger.Info("Session logged out",
			zap.String("role", claims.Role),
			zap.String("leaderboardId", claims.CompetitionID))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// TeamAuth はチームコードを検証してチームセッショントークンを発行する。
func TeamAuth(c *gin.Context, s store.Store, logger *zap.Logger) {
	var req models.TeamAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	team, err := s.GetTeamByCode(req.TeamCode)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid team code"})
		return
	}

	token, err := auth.GenerateSessionToken(models.SessionClaims{
		Role:          models.RoleTeam,
		TeamID:        team.ID,
		CompetitionID: team.CompetitionID,
	})
	if err != nil {
		logger.Error("Failed to generate team token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":         token,
		"teamId":        team.ID,
		"teamName":      team.Name,
		"leaderboardId": team.CompetitionID,
		"members":       team.Members(),
	})
}
