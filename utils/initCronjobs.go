package utils

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lbserver/models"
	"lbserver/store"
)

const (
	// 作成から7日間動きのない大会は自動終了、終了から30日で削除する。
	staleAfter = 7 * 24 * time.Hour
	purgeAfter = 30 * 24 * time.Hour
)

// CronCleaner は古い大会の自動終了と削除を毎日実行する。
func CronCleaner(s store.Store, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	c.AddFunc("10 4 * * *", func() {
		stale, err := s.ListStaleActive(time.Now().Add(-staleAfter))
		if err != nil {
			logger.Error("Failed to list stale competitions", zap.Error(err))
			return
		}
		for _, comp := range stale {
			if _, err := s.SetStatus(comp.ID, models.StatusEnded); err != nil {
				logger.Error("Failed to end stale competition",
					zap.String("competitionId", comp.ID), zap.Error(err))
				continue
			}
			logger.Info("Ended stale competition",
				zap.String("competitionId", comp.ID),
				zap.String("name", comp.Name))
		}
	})

	c.AddFunc("30 4 * * *", func() {
		deleted, err := s.DeleteEndedBefore(time.Now().Add(-purgeAfter))
		if err != nil {
			logger.Error("Failed to purge ended competitions", zap.Error(err))
			return
		}
		if deleted > 0 {
			logger.Info("Purged ended competitions", zap.Int64("count", deleted))
		}
	})

	c.Start()
	logger.Info("Cleanup cron jobs scheduled")
	return c
}
