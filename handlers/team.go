package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lbserver/auth"
	"lbserver/ledger"
	"lbserver/live"
	"lbserver/live/broadcast"
	"lbserver/models"
)

// RegisterTeam はHTTP経由のチーム登録。
// 登録が成立したら接続中のクライアントへも新チームを放送する。
func RegisterTeam(c *gin.Context, l *ledger.Ledger, hub *live.Hub, logger *zap.Logger) {
	var req models.JoinCompetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	team, comp, err := l.RegisterTeam(req.AccessCode, req.TeamName, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateSessionToken(models.SessionClaims{
		Role:          models.RoleTeam,
		TeamID:        team.ID,
		CompetitionID: comp.ID,
	})
	if err != nil {
		logger.Error("Failed to generate team token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	hub.Broadcaster.Publish(comp.ID, broadcast.TeamJoined{
		TeamID:   team.ID,
		TeamName: team.Name,
		Members:  team.Members(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"teamId":        team.ID,
		"teamCode":      team.TeamCode,
		"leaderboardId": comp.ID,
		"token":         token,
	})
}

// JoinTeam はチームコードでの後追い参加。
// isNewMemberで新規メンバー追加か既存メンバーとしての再参加かを分ける。
func JoinTeam(c *gin.Context, l *ledger.Ledger, logger *zap.Logger) {
	var req models.TeamJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	memberName := req.ExistingMember
	isNew := req.IsNewMember != nil && *req.IsNewMember
	if isNew {
		memberName = req.MemberName
	}
	if memberName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member name is required"})
		return
	}

	team, err := l.JoinAsMember(req.TeamCode, memberName, isNew)
	if err != nil {
		respondError(c, err)
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
		"teamId":        team.ID,
		"teamName":      team.Name,
		"leaderboardId": team.CompetitionID,
		"members":       team.Members(),
		"token":         token,
	})
}

// TeamProgress はチーム自身の完了状況を返す。要チームセッション。
func TeamProgress(c *gin.Context, l *ledger.Ledger) {
	claims := sessionClaims(c)
	if claims == nil || claims.TeamID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "team session required"})
		return
	}
	progress, err := l.Progress(claims.TeamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// CompleteChallenge はHTTP経由の課題完了。要チームセッション。
// ソケット経路と同じ台帳を通り、同じイベントが放送される。
func CompleteChallenge(c *gin.Context, l *ledger.Ledger, hub *live.Hub) {
	claims := sessionClaims(c)
	if claims == nil || claims.TeamID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "team session required"})
		return
	}
	var req models.CompleteChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := l.CompleteChallenge(claims.CompetitionID, claims.TeamID, req.ChallengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	hub.Broadcaster.Publish(claims.CompetitionID, broadcast.ChallengeCompleted{
		TeamID:         res.Team.ID,
		TeamName:       res.Team.Name,
		ChallengeID:    res.ChallengeID,
		ChallengeTitle: res.ChallengeTitle,
		Points:         res.Points,
		TotalPoints:    res.Team.TotalPoints,
		CompletedAt:    res.CompletedAt,
	})
	publishRanked(hub, claims.CompetitionID)

	c.JSON(http.StatusOK, gin.H{
		"challengeId": res.ChallengeID,
		"points":      res.Points,
		"totalPoints": res.Team.TotalPoints,
	})
}

// UncompleteChallenge は完了の取り消し。加点と対称に記録時の点数を戻す。
func UncompleteChallenge(c *gin.Context, l *ledger.Ledger, hub *live.Hub) {
	claims := sessionClaims(c)
	if claims == nil || claims.TeamID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "team session required"})
		return
	}
	var req models.CompleteChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := l.UncompleteChallenge(claims.CompetitionID, claims.TeamID, req.ChallengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	hub.Broadcaster.Publish(claims.CompetitionID, broadcast.ChallengeUncompleted{
		TeamID:         res.Team.ID,
		TeamName:       res.Team.Name,
		ChallengeID:    res.ChallengeID,
		ChallengeTitle: res.ChallengeTitle,
		Points:         res.Points,
		TotalPoints:    res.Team.TotalPoints,
	})
	publishRanked(hub, claims.CompetitionID)

	c.JSON(http.StatusOK, gin.H{
		"challengeId": res.ChallengeID,
		"points":      res.Points,
		"totalPoints": res.Team.TotalPoints,
	})
}

// publishRanked は順位表全体を部屋へ再送する。失敗しても応答は成立済み。
func publishRanked(hub *live.Hub, competitionID string) {
	ranked, err := hub.Ledger.Ranked(competitionID)
	if err != nil {
		hub.Logger.Warn("Failed to load leaderboard for broadcast",
			zap.String("competitionId", competitionID), zap.Error(err))
		return
	}
	hub.Broadcaster.Publish(competitionID, broadcast.LeaderboardUpdate{
		CompetitionID: competitionID,
		Teams:         ranked,
	})
}
