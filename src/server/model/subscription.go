package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Tier represents a subscription level
type Tier string

const (
	TierTrial Tier = "trial"
	TierPlus  Tier = "plus"
	TierPro   Tier = "pro"
)

// Valid reports whether the tier is a known value
func (t Tier) Valid() bool {
	return t == TierTrial || t == TierPlus || t == TierPro
}

// IsPaid reports whether the tier is a paying plan
func (t Tier) IsPaid() bool {
	return t == TierPlus || t == TierPro
}

// SubscriptionStatus mirrors the billing provider's lifecycle
type SubscriptionStatus string

const (
	SubStatusActive         SubscriptionStatus = "active"
	SubStatusExpired        SubscriptionStatus = "expired"
	SubStatusCancelled      SubscriptionStatus = "cancelled"
	SubStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubStatusPaymentFailed  SubscriptionStatus = "payment_failed"
)

// Subscription is the single authoritative billing row per user,
// mutated in place by the billing webhook
type Subscription struct {
	UserID               int64              `json:"user_id"`
	Tier                 Tier               `json:"tier"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	ExpiresAt            *time.Time         `json:"expires_at,omitempty"`
	FreeReleaseUsed      bool               `json:"free_release_used"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsExpired reports whether the subscription is past its expiry
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// DaysRemaining returns whole days until expiry, 0 when expired or open-ended
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.ExpiresAt == nil || now.After(*s.ExpiresAt) {
		return 0
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24)
}

// SubscriptionModel handles subscription database operations
type SubscriptionModel struct {
	DB *sql.DB
}

// EnsureTrial creates the trial row for a new account if none exists
func (m *SubscriptionModel) EnsureTrial(userID int64, trialDays int) (*Subscription, error) {
	expiresAt := time.Now().AddDate(0, 0, trialDays)
	_, err := m.DB.Exec(`
		INSERT INTO subscriptions (user_id, tier, status, expires_at, created_at, updated_at)
		VALUES (?, 'trial', 'active', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create trial subscription: %w", err)
	}
	return m.GetByUserID(userID)
}

// GetByUserID retrieves the subscription row for a user
func (m *SubscriptionModel) GetByUserID(userID int64) (*Subscription, error) {
	return m.scanSubscription(m.DB.QueryRow(`
		SELECT user_id, tier, status, stripe_customer_id, stripe_subscription_id,
		       expires_at, free_release_used, created_at, updated_at
		FROM subscriptions WHERE user_id = ?
	`, userID))
}

// GetByCustomerID resolves a billing customer reference to the local row
func (m *SubscriptionModel) GetByCustomerID(customerID string) (*Subscription, error) {
	return m.scanSubscription(m.DB.QueryRow(`
		SELECT user_id, tier, status, stripe_customer_id, stripe_subscription_id,
		       expires_at, free_release_used, created_at, updated_at
		FROM subscriptions WHERE stripe_customer_id = ?
	`, customerID))
}

func (m *SubscriptionModel) scanSubscription(row *sql.Row) (*Subscription, error) {
	sub := &Subscription{}
	var customerID, subscriptionID sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(&sub.UserID, &sub.Tier, &sub.Status, &customerID, &subscriptionID,
		&expiresAt, &sub.FreeReleaseUsed, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sub.StripeCustomerID = customerID.String
	sub.StripeSubscriptionID = subscriptionID.String
	if expiresAt.Valid {
		sub.ExpiresAt = &expiresAt.Time
	}
	return sub, nil
}

// ApplyBillingUpdate mirrors a webhook event onto the local row
func (m *SubscriptionModel) ApplyBillingUpdate(userID int64, tier Tier, status SubscriptionStatus, customerID, subscriptionID string, expiresAt *time.Time) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier: %s", tier)
	}
	_, err := m.DB.Exec(`
		UPDATE subscriptions
		SET tier = ?, status = ?, stripe_customer_id = ?, stripe_subscription_id = ?,
		    expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, tier, status, customerID, subscriptionID, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("failed to apply billing update: %w", err)
	}
	return nil
}

// SetStatus updates only the lifecycle status
func (m *SubscriptionModel) SetStatus(userID int64, status SubscriptionStatus) error {
	result, err := m.DB.Exec(`
		UPDATE subscriptions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?
	`, status, userID)
	if err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFreeReleaseUsed flips the trial's one-way free-release flag.
// Returns true only for the call that actually flipped it.
func (m *SubscriptionModel) MarkFreeReleaseUsed(userID int64) (bool, error) {
	result, err := m.DB.Exec(`
		UPDATE subscriptions
		SET free_release_used = 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND free_release_used = 0
	`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark free release used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ExpireOverdue flips active rows past expiry to expired; run hourly
func (m *SubscriptionModel) ExpireOverdue() (int64, error) {
	result, err := m.DB.Exec(`
		UPDATE subscriptions
		SET status = 'expired', updated_at = CURRENT_TIMESTAMP
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
