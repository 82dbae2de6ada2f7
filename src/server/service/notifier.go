package service

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/metrics"
)

// nudge defines one lifecycle message: the day-since-signup threshold it
// fires on, a precondition against the account's current state, and the
// message text. The notification_key makes every send at-most-once.
type nudge struct {
	Day       int
	Condition func(s *nudgeState) bool
	Message   func(s *nudgeState) string
}

// nudgeState is the per-user snapshot the preconditions are checked against
type nudgeState struct {
	UserID          int64
	DaysSinceSignup int
	Tier            models.Tier
	DaysRemaining   int
	IsExpired       bool
	HasAnyRelease   bool
	HasSubmitted    bool
	FreeReleaseUsed bool
}

var nudges = []nudge{
	{
		Day:       1,
		Condition: func(s *nudgeState) bool { return !s.HasAnyRelease },
		Message: func(s *nudgeState) string {
			return "Welcome! Start your first release whenever you're ready. A draft takes about 10 minutes and you can come back to it any time."
		},
	},
	{
		Day:       3,
		Condition: func(s *nudgeState) bool { return !s.HasAnyRelease },
		Message: func(s *nudgeState) string {
			return "Still thinking it over? Your trial includes one free release. Drafting now keeps your release date options open."
		},
	},
	{
		Day:       7,
		Condition: func(s *nudgeState) bool { return s.HasAnyRelease && !s.HasSubmitted },
		Message: func(s *nudgeState) string {
			return "You have a draft waiting. Finish the remaining steps and submit it for review to lock in your release date."
		},
	},
	{
		Day:       10,
		Condition: func(s *nudgeState) bool { return s.Tier == models.TierTrial },
		Message: func(s *nudgeState) string {
			return fmt.Sprintf("Your trial has %d days left. Plus and Pro keep your releases live and unlock analytics.", s.DaysRemaining)
		},
	},
	{
		Day:       12,
		Condition: func(s *nudgeState) bool { return s.Tier == models.TierTrial && !s.FreeReleaseUsed },
		Message: func(s *nudgeState) string {
			return "Your free trial release is still unused. Submit before your trial ends so it doesn't go to waste."
		},
	},
	{
		Day:       14,
		Condition: func(s *nudgeState) bool { return s.Tier == models.TierTrial },
		Message: func(s *nudgeState) string {
			return "Your trial ends today. Upgrade now to keep distribution, analytics and the assistant available."
		},
	},
	{
		Day:       17,
		Condition: func(s *nudgeState) bool { return s.Tier == models.TierTrial && s.IsExpired },
		Message: func(s *nudgeState) string {
			return "Your trial has ended, but your drafts and account are intact. Pick a plan to continue where you left off."
		},
	},
	{
		Day:       20,
		Condition: func(s *nudgeState) bool { return s.Tier == models.TierTrial && s.IsExpired },
		Message: func(s *nudgeState) string {
			return "Last reminder: your work is saved and ready. Reactivate with Plus or Pro whenever you want to release."
		},
	},
}

// Notifier dispatches lifecycle nudges into assistant threads and pushes
// unread counts over the websocket hub
type Notifier struct {
	DB       *sql.DB
	Messages *models.AssistantMessageModel
	Users    *models.UserModel
	Subs     *models.SubscriptionModel
	Hub      *WebSocketHub
}

// NewNotifier wires a notifier against the database and hub
func NewNotifier(db *sql.DB, hub *WebSocketHub) *Notifier {
	return &Notifier{
		DB:       db,
		Messages: &models.AssistantMessageModel{DB: db},
		Users:    &models.UserModel{DB: db},
		Subs:     &models.SubscriptionModel{DB: db},
		Hub:      hub,
	}
}

// NotificationKey builds the idempotency key for a threshold
func NotificationKey(day int) string {
	return "lifecycle_day_" + strconv.Itoa(day)
}

// DispatchAll evaluates every user against every threshold that has been
// reached. Safe to run any number of times per day: the notification_key
// unique index turns repeats into no-ops.
func (n *Notifier) DispatchAll(now time.Time) (int, error) {
	users, err := n.Users.ListUserIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	sent := 0
	for _, u := range users {
		count, err := n.dispatchForUser(u.ID, u.CreatedAt, now)
		if err != nil {
			// One bad account must not stop the sweep
			log.Printf("⚠️ Nudge dispatch failed for user %d: %v", u.ID, err)
			continue
		}
		sent += count
	}
	return sent, nil
}

func (n *Notifier) dispatchForUser(userID int64, signupAt, now time.Time) (int, error) {
	state, err := n.loadState(userID, signupAt, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, nd := range nudges {
		if state.DaysSinceSignup < nd.Day {
			continue
		}
		if !nd.Condition(state) {
			continue
		}
		inserted, err := n.Messages.InsertNotification(userID, NotificationKey(nd.Day), nd.Message(state))
		if err != nil {
			return sent, err
		}
		if inserted {
			sent++
			metrics.NudgesSent.WithLabelValues(strconv.Itoa(nd.Day)).Inc()
		}
	}

	if sent > 0 && n.Hub != nil {
		if unread, err := n.Messages.UnreadCount(userID); err == nil {
			n.Hub.NotifyUnreadCount(userID, unread)
		}
	}
	return sent, nil
}

func (n *Notifier) loadState(userID int64, signupAt, now time.Time) (*nudgeState, error) {
	state := &nudgeState{
		UserID:          userID,
		DaysSinceSignup: int(now.Sub(signupAt).Hours() / 24),
	}

	sub, err := n.Subs.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	state.Tier = sub.Tier
	state.DaysRemaining = sub.DaysRemaining(now)
	state.IsExpired = sub.IsExpired(now) || sub.Status == models.SubStatusExpired
	state.FreeReleaseUsed = sub.FreeReleaseUsed

	var total, submitted int
	err = n.DB.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status != 'draft' THEN 1 ELSE 0 END), 0)
		FROM releases WHERE artist_id = ?
	`, userID).Scan(&total, &submitted)
	if err != nil {
		return nil, err
	}
	state.HasAnyRelease = total > 0
	state.HasSubmitted = submitted > 0

	return state, nil
}
