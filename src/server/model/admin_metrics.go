package models

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// PeriodMetrics holds the aggregates for one reporting window
type PeriodMetrics struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	TotalUsers     int       `json:"total_users"`
	NewUsers       int       `json:"new_users"`
	ConversionRate float64   `json:"conversion_rate"` // trial→paid, percent
	MRRCents       int64     `json:"mrr_cents"`
	ARPUCents      float64   `json:"arpu_cents"`
	RejectionRate  float64   `json:"rejection_rate"` // percent of finalized reviews
	EngagementRate float64   `json:"engagement_rate"`
}

// TrendPoint is one bucket in the trend series
type TrendPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	NewUsers    int       `json:"new_users"`
	NewReleases int       `json:"new_releases"`
	Logins      int       `json:"logins"`
}

// MetricsOverview is the full admin metrics payload: current period,
// the immediately preceding period of equal length, and a trend series
type MetricsOverview struct {
	Days     int            `json:"days"`
	Current  *PeriodMetrics `json:"current"`
	Previous *PeriodMetrics `json:"previous"`
	Trend    []TrendPoint   `json:"trend"`
}

// PlanPricing carries the per-tier monthly prices used for MRR
type PlanPricing struct {
	PlusMonthlyCents int64
	ProMonthlyCents  int64
}

// AdminMetricsModel computes business aggregates for the admin dashboard.
// Everything is recomputed from base tables on each call; nothing is
// pre-aggregated.
type AdminMetricsModel struct {
	DB      *sql.DB
	Pricing PlanPricing
}

// bucketDays picks the trend resolution for a window length:
// daily up to 30 days, weekly up to 90, ~monthly beyond
func bucketDays(days int) int {
	switch {
	case days <= 30:
		return 1
	case days <= 90:
		return 7
	default:
		return 30
	}
}

// Overview computes current-vs-previous metrics plus the trend series for
// the trailing N-day window ending now
func (m *AdminMetricsModel) Overview(days int, now time.Time) (*MetricsOverview, error) {
	if days <= 0 {
		days = 30
	}
	end := now
	start := end.AddDate(0, 0, -days)
	prevStart := start.AddDate(0, 0, -days)

	current, err := m.ComputePeriod(start, end)
	if err != nil {
		return nil, err
	}
	previous, err := m.ComputePeriod(prevStart, start)
	if err != nil {
		return nil, err
	}
	trend, err := m.TrendSeries(start, end, bucketDays(days))
	if err != nil {
		return nil, err
	}

	return &MetricsOverview{Days: days, Current: current, Previous: previous, Trend: trend}, nil
}

// ComputePeriod recomputes all aggregates for [start, end)
func (m *AdminMetricsModel) ComputePeriod(start, end time.Time) (*PeriodMetrics, error) {
	p := &PeriodMetrics{Start: start, End: end}

	// Users existing by period end; denominator for engagement and ARPU
	err := m.DB.QueryRow(`SELECT COUNT(*) FROM users WHERE created_at < ?`, end).Scan(&p.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	err = m.DB.QueryRow(`SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?`, start, end).Scan(&p.NewUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count new users: %w", err)
	}

	// Trial→paid conversion: accounts that moved onto a paid tier during the
	// period, over accounts existing by period end
	var conversions int
	err = m.DB.QueryRow(`
		SELECT COUNT(*) FROM subscriptions
		WHERE tier IN ('plus', 'pro') AND updated_at >= ? AND updated_at < ?
	`, start, end).Scan(&conversions)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	if p.TotalUsers > 0 {
		p.ConversionRate = round1(float64(conversions) / float64(p.TotalUsers) * 100)
	}

	// MRR over subscriptions active and unexpired at period end
	var plusCount, proCount int64
	err = m.DB.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN tier = 'plus' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN tier = 'pro' THEN 1 ELSE 0 END), 0)
		FROM subscriptions
		WHERE status = 'active' AND (expires_at IS NULL OR expires_at > ?)
	`, end).Scan(&plusCount, &proCount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute MRR: %w", err)
	}
	p.MRRCents = plusCount*m.Pricing.PlusMonthlyCents + proCount*m.Pricing.ProMonthlyCents
	if p.TotalUsers > 0 {
		p.ARPUCents = round1(float64(p.MRRCents) / float64(p.TotalUsers))
	}

	// Rejection rate over reviews finalized in the period. No finalized
	// releases means rate 0, not an error.
	var approved, rejected int
	err = m.DB.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN status IN ('approved', 'sent_to_stores') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM releases
		WHERE reviewed_at IS NOT NULL AND reviewed_at >= ? AND reviewed_at < ?
	`, start, end).Scan(&approved, &rejected)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rejection rate: %w", err)
	}
	if finalized := approved + rejected; finalized > 0 {
		p.RejectionRate = round1(float64(rejected) / float64(finalized) * 100)
	}

	// Engagement: distinct accounts that logged in during the period, over
	// accounts existing by period end
	var activeUsers int
	err = m.DB.QueryRow(`
		SELECT COUNT(DISTINCT user_id) FROM user_activity
		WHERE activity_type = 'login' AND created_at >= ? AND created_at < ?
	`, start, end).Scan(&activeUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to compute engagement: %w", err)
	}
	if p.TotalUsers > 0 {
		p.EngagementRate = round1(float64(activeUsers) / float64(p.TotalUsers) * 100)
	}

	return p, nil
}

// TrendSeries recomputes per-bucket counts over [start, end). The last
// bucket may be shorter than the step.
func (m *AdminMetricsModel) TrendSeries(start, end time.Time, stepDays int) ([]TrendPoint, error) {
	var points []TrendPoint
	for cursor := start; cursor.Before(end); cursor = cursor.AddDate(0, 0, stepDays) {
		bucketEnd := cursor.AddDate(0, 0, stepDays)
		if bucketEnd.After(end) {
			bucketEnd = end
		}
		point := TrendPoint{BucketStart: cursor, BucketEnd: bucketEnd}

		err := m.DB.QueryRow(`
			SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?
		`, cursor, bucketEnd).Scan(&point.NewUsers)
		if err != nil {
			return nil, fmt.Errorf("failed to compute trend bucket: %w", err)
		}

		err = m.DB.QueryRow(`
			SELECT COUNT(*) FROM releases WHERE created_at >= ? AND created_at < ?
		`, cursor, bucketEnd).Scan(&point.NewReleases)
		if err != nil {
			return nil, fmt.Errorf("failed to compute trend bucket: %w", err)
		}

		err = m.DB.QueryRow(`
			SELECT COUNT(*) FROM user_activity
			WHERE activity_type = 'login' AND created_at >= ? AND created_at < ?
		`, cursor, bucketEnd).Scan(&point.Logins)
		if err != nil {
			return nil, fmt.Errorf("failed to compute trend bucket: %w", err)
		}

		points = append(points, point)
	}
	return points, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
