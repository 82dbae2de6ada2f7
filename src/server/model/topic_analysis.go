package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Topic analysis statuses
const (
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisFailed     = "failed"
)

// TopicCount is one aggregated conversation topic
type TopicCount struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// WordCount is one wordcloud entry
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// TopicAnalysis is one aggregation run, keyed by (date, tier, range).
// Reruns for the same key overwrite; failures are stored, not raised.
type TopicAnalysis struct {
	AnalysisDate  string       `json:"analysis_date"` // YYYY-MM-DD
	UserTier      Tier         `json:"user_tier"`
	TimeRangeDays int          `json:"time_range_days"`
	Topics        []TopicCount `json:"topics,omitempty"`
	Wordcloud     []WordCount  `json:"wordcloud,omitempty"`
	Status        string       `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TopicAnalysisModel handles topic analysis database operations
type TopicAnalysisModel struct {
	DB *sql.DB
}

// Begin marks a key as processing, creating or resetting the row
func (m *TopicAnalysisModel) Begin(date string, tier Tier, rangeDays int) error {
	_, err := m.DB.Exec(`
		INSERT INTO topic_analyses (analysis_date, user_tier, time_range_days, status, updated_at)
		VALUES (?, ?, ?, 'processing', CURRENT_TIMESTAMP)
		ON CONFLICT(analysis_date, user_tier, time_range_days)
		DO UPDATE SET status = 'processing', error_message = NULL, updated_at = CURRENT_TIMESTAMP
	`, date, tier, rangeDays)
	if err != nil {
		return fmt.Errorf("failed to begin topic analysis: %w", err)
	}
	return nil
}

// Complete stores the results for a key
func (m *TopicAnalysisModel) Complete(date string, tier Tier, rangeDays int, topics []TopicCount, wordcloud []WordCount) error {
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	wordcloudJSON, err := json.Marshal(wordcloud)
	if err != nil {
		return fmt.Errorf("failed to encode wordcloud: %w", err)
	}
	_, err = m.DB.Exec(`
		UPDATE topic_analyses
		SET topics_json = ?, wordcloud_json = ?, status = 'completed', error_message = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE analysis_date = ? AND user_tier = ? AND time_range_days = ?
	`, string(topicsJSON), string(wordcloudJSON), date, tier, rangeDays)
	if err != nil {
		return fmt.Errorf("failed to complete topic analysis: %w", err)
	}
	return nil
}

// Fail records a failed run. The error stays in the row; callers of the
// analysis never see it.
func (m *TopicAnalysisModel) Fail(date string, tier Tier, rangeDays int, cause error) error {
	_, err := m.DB.Exec(`
		UPDATE topic_analyses
		SET status = 'failed', error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE analysis_date = ? AND user_tier = ? AND time_range_days = ?
	`, cause.Error(), date, tier, rangeDays)
	if err != nil {
		return fmt.Errorf("failed to record analysis failure: %w", err)
	}
	return nil
}

// Get retrieves one analysis by key
func (m *TopicAnalysisModel) Get(date string, tier Tier, rangeDays int) (*TopicAnalysis, error) {
	ta := &TopicAnalysis{}
	var topicsJSON, wordcloudJSON, errMsg sql.NullString
	err := m.DB.QueryRow(`
		SELECT analysis_date, user_tier, time_range_days, topics_json, wordcloud_json,
		       status, error_message, updated_at
		FROM topic_analyses
		WHERE analysis_date = ? AND user_tier = ? AND time_range_days = ?
	`, date, tier, rangeDays).Scan(&ta.AnalysisDate, &ta.UserTier, &ta.TimeRangeDays,
		&topicsJSON, &wordcloudJSON, &ta.Status, &errMsg, &ta.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ta.ErrorMessage = errMsg.String
	if topicsJSON.Valid && topicsJSON.String != "" {
		if err := json.Unmarshal([]byte(topicsJSON.String), &ta.Topics); err != nil {
			return nil, fmt.Errorf("failed to decode topics: %w", err)
		}
	}
	if wordcloudJSON.Valid && wordcloudJSON.String != "" {
		if err := json.Unmarshal([]byte(wordcloudJSON.String), &ta.Wordcloud); err != nil {
			return nil, fmt.Errorf("failed to decode wordcloud: %w", err)
		}
	}
	return ta, nil
}

// Latest returns the most recent completed analysis for a tier and range
func (m *TopicAnalysisModel) Latest(tier Tier, rangeDays int) (*TopicAnalysis, error) {
	var date string
	err := m.DB.QueryRow(`
		SELECT analysis_date FROM topic_analyses
		WHERE user_tier = ? AND time_range_days = ? AND status = 'completed'
		ORDER BY analysis_date DESC LIMIT 1
	`, tier, rangeDays).Scan(&date)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.Get(date, tier, rangeDays)
}
