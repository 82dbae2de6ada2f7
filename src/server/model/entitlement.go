package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Feature keys in the entitlement featureAccess map
const (
	FeatureReleaseCreation = "release_creation"
	FeatureAnalytics       = "analytics"
	FeatureAIAssistant     = "ai_assistant"
	FeatureFanEngagement   = "fan_engagement"
	FeatureCustomLabel     = "custom_label"
	FeaturePriorityReview  = "priority_review"
)

// Unlimited marks a usage limit with no cap
const Unlimited = -1

// tierLimits holds the per-tier numeric caps. Trial AI usage resets daily,
// plus monthly, pro is uncapped.
type tierLimits struct {
	aiTokens          int64
	aiPeriodDaily     bool
	pendingReleaseCap int
}

var limitsByTier = map[Tier]tierLimits{
	TierTrial: {aiTokens: 10000, aiPeriodDaily: true, pendingReleaseCap: 1},
	TierPlus:  {aiTokens: 200000, aiPeriodDaily: false, pendingReleaseCap: 10},
	TierPro:   {aiTokens: Unlimited, aiPeriodDaily: false, pendingReleaseCap: 25},
}

// UsageSnapshot reports consumption against the tier's caps
type UsageSnapshot struct {
	AITokensUsed      int64  `json:"ai_tokens_used"`
	AITokenLimit      int64  `json:"ai_token_limit"` // -1 = unlimited
	AIPeriodKey       string `json:"ai_period_key"`
	PendingReleases   int    `json:"pending_releases"`
	PendingReleaseCap int    `json:"pending_release_cap"`
}

// Entitlement answers "what can this user do right now"
type Entitlement struct {
	Tier          Tier            `json:"tier"`
	Status        SubscriptionStatus `json:"status"`
	IsExpired     bool            `json:"is_expired"`
	DaysRemaining int             `json:"days_remaining"`
	FeatureAccess map[string]bool `json:"feature_access"`
	Usage         UsageSnapshot   `json:"usage"`
}

// CanUseAI reports whether another AI request is allowed
func (e *Entitlement) CanUseAI() bool {
	if !e.FeatureAccess[FeatureAIAssistant] {
		return false
	}
	if e.Usage.AITokenLimit == Unlimited {
		return true
	}
	return e.Usage.AITokensUsed < e.Usage.AITokenLimit
}

// CanCreateRelease reports whether a new release may be started
func (e *Entitlement) CanCreateRelease() bool {
	if !e.FeatureAccess[FeatureReleaseCreation] {
		return false
	}
	return e.Usage.PendingReleases < e.Usage.PendingReleaseCap
}

// EntitlementModel derives entitlements from subscription state.
// Pure read-through; the only mutation lives on SubscriptionModel
// (MarkFreeReleaseUsed) and AddAIUsage below.
type EntitlementModel struct {
	DB *sql.DB
}

// aiPeriodKey returns the usage bucket key for a tier at a point in time
func aiPeriodKey(tier Tier, now time.Time) string {
	if limitsByTier[tier].aiPeriodDaily {
		return now.UTC().Format("2006-01-02")
	}
	return now.UTC().Format("2006-01")
}

// Resolve computes the current entitlement for a user
func (m *EntitlementModel) Resolve(userID int64) (*Entitlement, error) {
	return m.ResolveAt(userID, time.Now())
}

// ResolveAt computes the entitlement as of a given instant
func (m *EntitlementModel) ResolveAt(userID int64, now time.Time) (*Entitlement, error) {
	subModel := &SubscriptionModel{DB: m.DB}
	sub, err := subModel.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	limits := limitsByTier[sub.Tier]
	expired := sub.IsExpired(now) || sub.Status == SubStatusExpired

	periodKey := aiPeriodKey(sub.Tier, now)
	var tokensUsed int64
	err = m.DB.QueryRow(`
		SELECT COALESCE(tokens_used, 0) FROM ai_usage WHERE user_id = ? AND period_key = ?
	`, userID, periodKey).Scan(&tokensUsed)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read AI usage: %w", err)
	}

	var pending int
	err = m.DB.QueryRow(`
		SELECT COUNT(*) FROM releases WHERE artist_id = ? AND status = 'under_review'
	`, userID).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending releases: %w", err)
	}

	paid := sub.Tier.IsPaid() && !expired
	access := map[string]bool{
		FeatureReleaseCreation: !expired && (sub.Tier != TierTrial || !sub.FreeReleaseUsed),
		FeatureAnalytics:       paid,
		FeatureAIAssistant:     !expired,
		FeatureFanEngagement:   paid,
		FeatureCustomLabel:     sub.Tier == TierPro && !expired,
		FeaturePriorityReview:  sub.Tier == TierPro && !expired,
	}

	return &Entitlement{
		Tier:          sub.Tier,
		Status:        sub.Status,
		IsExpired:     expired,
		DaysRemaining: sub.DaysRemaining(now),
		FeatureAccess: access,
		Usage: UsageSnapshot{
			AITokensUsed:      tokensUsed,
			AITokenLimit:      limits.aiTokens,
			AIPeriodKey:       periodKey,
			PendingReleases:   pending,
			PendingReleaseCap: limits.pendingReleaseCap,
		},
	}, nil
}

// AddAIUsage accrues consumed tokens into the current period bucket
func (m *EntitlementModel) AddAIUsage(userID int64, tier Tier, tokens int64, now time.Time) error {
	if tokens <= 0 {
		return nil
	}
	_, err := m.DB.Exec(`
		INSERT INTO ai_usage (user_id, period_key, tokens_used, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, period_key)
		DO UPDATE SET tokens_used = tokens_used + excluded.tokens_used, updated_at = CURRENT_TIMESTAMP
	`, userID, aiPeriodKey(tier, now), tokens)
	if err != nil {
		return fmt.Errorf("failed to record AI usage: %w", err)
	}
	return nil
}
