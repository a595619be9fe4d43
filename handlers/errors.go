// handlers はHTTPエンドポイントの実装。ginの自由関数スタイルで書き、
// 依存はmain側のクロージャから渡される。
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lbserver/ledger"
	"lbserver/models"
	"lbserver/store"
)

// respondError は業務エラーをHTTPステータスへ写像して返す。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, store.ErrNameConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "team name already taken"})
	case errors.Is(err, ledger.ErrCompetitionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "competition has ended"})
	case errors.Is(err, ledger.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "challenge not found"})
	case errors.Is(err, ledger.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "challenge already completed"})
	case errors.Is(err, ledger.ErrNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "challenge is not completed"})
	case errors.Is(err, ledger.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "operation not permitted"})
	case errors.Is(err, ledger.ErrNotAcceptingTeams):
		c.JSON(http.StatusConflict, gin.H{"error": "competition is not accepting teams"})
	case errors.Is(err, ledger.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status value"})
	case errors.Is(err, ledger.ErrMemberExists):
		c.JSON(http.StatusConflict, gin.H{"error": "member name already registered"})
	case errors.Is(err, ledger.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
	case errors.Is(err, models.ErrInvalidChallenges):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
