package scheduler

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"
)

var analysisRanges = []int{7, 30, 90}

// RegisterTasks wires the standard background tasks onto a scheduler
func RegisterTasks(s *Scheduler, db *sql.DB, notifier *service.Notifier, assistant *service.AssistantService) error {
	// Lifecycle nudges once a day; the notification_key index makes extra
	// runs harmless
	if err := s.AddTask("lifecycle-nudges", "0 9 * * *", func() error {
		sent, err := notifier.DispatchAll(time.Now())
		if err != nil {
			return err
		}
		if sent > 0 {
			log.Printf("📬 Dispatched %d lifecycle nudges", sent)
		}
		return nil
	}); err != nil {
		return err
	}

	// Topic analysis nightly per tier and range
	if err := s.AddTask("topic-analysis", "0 3 * * *", func() error {
		now := time.Now()
		date := now.UTC().Format("2006-01-02")
		for _, tier := range []models.Tier{models.TierTrial, models.TierPlus, models.TierPro} {
			for _, rangeDays := range analysisRanges {
				assistant.RunTopicAnalysis(date, tier, rangeDays, now)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	// Hourly sweep of subscriptions past their expiry
	if err := s.AddTask("subscription-sweep", "@hourly", func() error {
		subModel := &models.SubscriptionModel{DB: db}
		expired, err := subModel.ExpireOverdue()
		if err != nil {
			return fmt.Errorf("expiry sweep failed: %w", err)
		}
		if expired > 0 {
			log.Printf("⏰ Expired %d overdue subscriptions", expired)
		}
		return nil
	}); err != nil {
		return err
	}

	// Nightly cleanup of expired API tokens
	return s.AddTask("token-cleanup", "0 4 * * *", func() error {
		tokenModel := &models.TokenModel{DB: db}
		deleted, err := tokenModel.DeleteExpired()
		if err != nil {
			return fmt.Errorf("token cleanup failed: %w", err)
		}
		if deleted > 0 {
			log.Printf("🧹 Deleted %d expired tokens", deleted)
		}
		return nil
	})
}
