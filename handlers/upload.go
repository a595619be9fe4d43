package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lbserver/ledger"
	"lbserver/models"
	"lbserver/store"
)

// アップロードできる定義ファイルの上限サイズ。
const maxChallengeUpload = 10 << 20

// UploadChallenges はチャレンジ定義の差し替え。要ホストセッション。
// multipartの"challenges"ファイルと生のJSONボディの両方を受け付ける。
// 検証に通った定義のみ保存する。既存の完了レコードはそのまま残り、
// 無効化されたチャレンジは表示側の集計から外れるだけになる。
func UploadChallenges(c *gin.Context, s store.Store, logger *zap.Logger) {
	claims := sessionClaims(c)
	if claims == nil || claims.Role != models.RoleHost {
		c.JSON(http.StatusForbidden, gin.H{"error": "host session required"})
		return
	}
	competitionID := c.Param("id")
	if claims.CompetitionID != competitionID {
		respondError(c, ledger.ErrForbidden)
		return
	}

	raw, err := readChallengeUpload(c)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "challenge file exceeds 10MB"})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	set, err := models.ParseChallengeSet(string(raw))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := set.Validate(); err != nil {
		respondError(c, err)
		return
	}

	// total_points補完込みで正規化した形を保存する
	normalized, err := json.Marshal(set)
	if err != nil {
		logger.Error("Failed to encode challenge set", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if err := s.UpdateChallenges(competitionID, string(normalized)); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Challenge set updated",
		zap.String("competitionId", competitionID),
		zap.Int("challenges", len(set.Challenges)))
	c.JSON(http.StatusOK, gin.H{
		"leaderboardId":  competitionID,
		"challengeCount": len(set.Challenges),
		"totalPoints":    set.Metadata.TotalPoints,
	})
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// readChallengeUpload は定義本体を取り出す。上限超過はエラー、
// 読めない・空のケースは空スライスで返して呼び出し側で400にする。
func readChallengeUpload(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("challenges"); err == nil {
		if file.Size > maxChallengeUpload {
			return nil, errUploadTooLarge
		}
		f, err := file.Open()
		if err != nil {
			return nil, nil
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, maxChallengeUpload+1))
		if err != nil {
			return nil, nil
		}
		if len(raw) > maxChallengeUpload {
			return nil, errUploadTooLarge
		}
		return raw, nil
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChallengeUpload+1))
	if err != nil {
		return nil, nil
	}
	if len(raw) > maxChallengeUpload {
		return nil, errUploadTooLarge
	}
	return raw, nil
}
