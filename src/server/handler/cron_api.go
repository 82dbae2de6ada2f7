package handler

import (
	"database/sql"
	"time"

	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
)

// Topic analysis is precomputed per tier and range so dashboard reads are
// cheap
var analysisRanges = []int{7, 30, 90}

// CronHandler exposes scheduler tasks as authenticated HTTP triggers for
// deployments that prefer external cron over the in-process scheduler
type CronHandler struct {
	DB        *sql.DB
	Notifier  *service.Notifier
	Assistant *service.AssistantService
}

// TriggerNotifications runs the lifecycle nudge sweep once
func (h *CronHandler) TriggerNotifications(c *gin.Context) {
	sent, err := h.Notifier.DispatchAll(time.Now())
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"ok": true, "sent": sent})
}

// TriggerTopicAnalysis recomputes today's topic aggregations for every
// tier and range. Per-key failures are recorded on the rows, not returned.
func (h *CronHandler) TriggerTopicAnalysis(c *gin.Context) {
	now := time.Now()
	date := now.UTC().Format("2006-01-02")

	runs := 0
	for _, tier := range []models.Tier{models.TierTrial, models.TierPlus, models.TierPro} {
		for _, rangeDays := range analysisRanges {
			h.Assistant.RunTopicAnalysis(date, tier, rangeDays, now)
			runs++
		}
	}
	RespondData(c, gin.H{"ok": true, "runs": runs, "date": date})
}

// TriggerSubscriptionSweep expires overdue subscriptions once
func (h *CronHandler) TriggerSubscriptionSweep(c *gin.Context) {
	subModel := &models.SubscriptionModel{DB: h.DB}
	expired, err := subModel.ExpireOverdue()
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"ok": true, "expired": expired})
}
