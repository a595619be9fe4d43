package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lbserver/ledger"
	"lbserver/live"
	"lbserver/live/broadcast"
	"lbserver/models"
	"lbserver/store"
	"lbserver/utils"
)

// CreateCompetition は新しい大会を作成する。
// チャレンジ定義は保存前にスキーマ検証し、アクセスコードは衝突時に
// 数回だけ引き直す。
func CreateCompetition(c *gin.Context, s store.Store, logger *zap.Logger) {
	var req models.CreateCompetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	set, err := models.ParseChallengeSet(string(req.Challenges))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := set.Validate(); err != nil {
		respondError(c, err)
		return
	}

	comp := &models.Competition{
		ID:             uuid.New().String(),
		Name:           req.Name,
		HostCode:       uuid.New().String(),
		ChallengesJSON: string(req.Challenges),
		Status:         models.StatusActive,
		CreatedAt:      time.Now(),
	}
	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateAccessCode()
		if err != nil {
			logger.Error("Failed to generate access code", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		comp.AccessCode = code
		if err := s.CreateCompetition(comp); err == nil {
			break
		} else if attempt == 4 {
			logger.Error("Failed to create competition", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
	}

	logger.Info("Competition created",
		zap.String("competitionId", comp.ID),
		zap.String("name", comp.Name))
	c.JSON(http.StatusCreated, gin.H{
		"leaderboardId": comp.ID,
		"name":          comp.Name,
		"hostCode":      comp.HostCode,
		"accessCode":    comp.AccessCode,
		"status":        comp.Status,
	})
}

// GetCompetition は大会の公開ビュー(順位表スナップショット)を返す。
func GetCompetition(c *gin.Context, hub *live.Hub) {
	snap, err := hub.Snapshots.Build(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// UpdateStatus はホストによるステータス変更のHTTP経路。
// 成立したら接続中の全クライアントへも放送する。
func UpdateStatus(c *gin.Context, l *ledger.Ledger, hub *live.Hub) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	hostCode := req.HostCode
	if claims := sessionClaims(c); claims != nil && claims.HostCode != "" {
		hostCode = claims.HostCode
	}

	comp, err := l.ChangeStatus(c.Param("id"), req.Status, hostCode)
	if err != nil {
		respondError(c, err)
		return
	}

	hub.Broadcaster.Publish(comp.ID, broadcast.StatusChanged{
		CompetitionID: comp.ID,
		Status:        comp.Status,
		StartedAt:     comp.StartedAt,
		EndedAt:       comp.EndedAt,
	})
	c.JSON(http.StatusOK, gin.H{
		"leaderboardId": comp.ID,
		"status":        comp.Status,
		"startedAt":     comp.StartedAt,
		"endedAt":       comp.EndedAt,
	})
}

// ExportCSV は順位表をCSVでダウンロードさせる。ホスト向け。
func ExportCSV(c *gin.Context, s store.Store, logger *zap.Logger) {
	competitionID := c.Param("id")
	comp, err := s.GetCompetition(competitionID)
	if err != nil {
		respondError(c, err)
		return
	}
	ranked, err := s.ListTeamsRanked(competitionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="leaderboard-%s.csv"`, comp.ID))

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"rank", "team", "points", "registered_at"})
	for _, row := range ranked {
		w.Write([]string{
			strconv.Itoa(row.Rank),
			row.Name,
			strconv.Itoa(row.TotalPoints),
			row.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Warn("Failed to write CSV export",
			zap.String("competitionId", competitionID), zap.Error(err))
	}
}
