package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Upload statuses recorded in upload_history
const (
	UploadSuccess        = "success"
	UploadPartialSuccess = "partial_success"
	UploadFailed         = "failed"
)

// EarningsRow is one parsed line of a store earnings report
type EarningsRow struct {
	ID           int64   `json:"id"`
	UploadID     string  `json:"upload_id"`
	SaleMonth    string  `json:"sale_month"`
	Store        string  `json:"store"`
	ArtistName   string  `json:"artist_name,omitempty"`
	ReleaseTitle string  `json:"release_title,omitempty"`
	TrackTitle   string  `json:"track_title,omitempty"`
	ISRC         string  `json:"isrc,omitempty"`
	Quantity     int     `json:"quantity"`
	EarningsUSD  float64 `json:"earnings_usd"`
}

// UploadRecord is the audit row for one report file
type UploadRecord struct {
	ID            string    `json:"id"`
	AdminID       int64     `json:"admin_id"`
	Filename      string    `json:"filename"`
	RowsTotal     int       `json:"rows_total"`
	RowsProcessed int       `json:"rows_processed"`
	RowsFailed    int       `json:"rows_failed"`
	Status        string    `json:"upload_status"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EarningsModel handles earnings report database operations
type EarningsModel struct {
	DB *sql.DB
}

// NewUploadID returns the identifier shared by an upload and its rows
func NewUploadID() string {
	return uuid.New().String()
}

// InsertRows writes the parsed rows of one upload in a single transaction
func (m *EarningsModel) InsertRows(uploadID string, rows []EarningsRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := m.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO earnings_reports (upload_id, sale_month, store, artist_name,
			release_title, track_title, isrc, quantity, earnings_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(uploadID, r.SaleMonth, r.Store, nullIfEmpty(r.ArtistName),
			nullIfEmpty(r.ReleaseTitle), nullIfEmpty(r.TrackTitle), nullIfEmpty(r.ISRC),
			r.Quantity, r.EarningsUSD)
		if err != nil {
			return fmt.Errorf("failed to insert earnings row: %w", err)
		}
	}
	return tx.Commit()
}

// RecordUpload writes the audit row for a processed file
func (m *EarningsModel) RecordUpload(rec *UploadRecord) error {
	_, err := m.DB.Exec(`
		INSERT INTO upload_history (id, admin_id, filename, rows_total, rows_processed,
			rows_failed, upload_status, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, rec.ID, rec.AdminID, rec.Filename, rec.RowsTotal, rec.RowsProcessed,
		rec.RowsFailed, rec.Status, nullIfEmpty(rec.ErrorDetail))
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// ListUploads returns recent upload audit rows, newest first
func (m *EarningsModel) ListUploads(limit int) ([]*UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.DB.Query(`
		SELECT id, admin_id, filename, rows_total, rows_processed, rows_failed,
		       upload_status, error_detail, created_at
		FROM upload_history ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*UploadRecord
	for rows.Next() {
		rec := &UploadRecord{}
		var detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AdminID, &rec.Filename, &rec.RowsTotal,
			&rec.RowsProcessed, &rec.RowsFailed, &rec.Status, &detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ErrorDetail = detail.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MonthlySummary aggregates earnings per sale month and store
type MonthlySummary struct {
	SaleMonth   string  `json:"sale_month"`
	Store       string  `json:"store"`
	Quantity    int     `json:"quantity"`
	EarningsUSD float64 `json:"earnings_usd"`
}

// SummarizeByMonth returns per-month, per-store totals, newest month first
func (m *EarningsModel) SummarizeByMonth() ([]MonthlySummary, error) {
	rows, err := m.DB.Query(`
		SELECT sale_month, store, COALESCE(SUM(quantity), 0), COALESCE(SUM(earnings_usd), 0)
		FROM earnings_reports
		GROUP BY sale_month, store
		ORDER BY sale_month DESC, store
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlySummary
	for rows.Next() {
		var s MonthlySummary
		if err := rows.Scan(&s.SaleMonth, &s.Store, &s.Quantity, &s.EarningsUSD); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
