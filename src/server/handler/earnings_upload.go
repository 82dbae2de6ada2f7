package handler

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// Store reports arrive with wildly inconsistent headers; each required
// column matches any of its synonyms, case-insensitively
var headerSynonyms = map[string][]string{
	"sale_month":    {"sale month", "sale_month", "salemonth", "month", "reporting month", "reporting period", "period"},
	"store":         {"store", "platform", "service", "dsp", "retailer"},
	"earnings":      {"earnings", "earnings (usd)", "earnings usd", "net revenue", "revenue", "amount", "amount due", "net earnings", "royalty", "payable"},
	"artist_name":   {"artist", "artist name", "artist_name"},
	"release_title": {"release", "release title", "release_title", "album", "album title", "product title"},
	"track_title":   {"track", "track title", "track_title", "song", "song title", "title"},
	"isrc":          {"isrc"},
	"quantity":      {"quantity", "units", "streams", "qty", "count", "plays"},
}

var requiredColumns = []string{"sale_month", "store", "earnings"}

// Matching precedence when one header cell could satisfy several columns
var columnOrder = []string{"sale_month", "store", "earnings", "artist_name", "release_title", "track_title", "isrc", "quantity"}

// EarningsUploadHandler imports store earnings reports
type EarningsUploadHandler struct {
	DB *sql.DB
}

const maxUploadBytes = 32 << 20 // 32 MB

// Upload accepts one multipart .csv or .tsv file, parses it row by row,
// and records an upload_history audit row. Bad rows are collected and
// skipped; they never abort the rest of the file.
func (h *EarningsUploadHandler) Upload(c *gin.Context) {
	admin := middleware.GetUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "multipart field 'file' is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "file exceeds the 32MB limit")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var delimiter rune
	switch ext {
	case ".csv":
		delimiter = ','
	case ".tsv":
		delimiter = '\t'
	default:
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "only .csv and .tsv files are supported")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		RespondModelError(c, err)
		return
	}
	defer file.Close()

	earningsModel := &models.EarningsModel{DB: h.DB}
	uploadID := models.NewUploadID()

	result, parseErr := parseEarningsFile(file, delimiter, uploadID)

	record := &models.UploadRecord{
		ID:       uploadID,
		AdminID:  admin.ID,
		Filename: fileHeader.Filename,
	}

	if parseErr != nil {
		record.Status = models.UploadFailed
		record.ErrorDetail = parseErr.message
		if err := earningsModel.RecordUpload(record); err != nil {
			RespondModelError(c, err)
			return
		}
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, parseErr.message, map[string]interface{}{
			"found_headers": parseErr.foundHeaders,
			"sample_lines":  parseErr.sampleLines,
		})
		return
	}

	record.RowsTotal = result.total
	record.RowsProcessed = len(result.rows)
	record.RowsFailed = result.total - len(result.rows)

	if len(result.rows) > 0 {
		if err := earningsModel.InsertRows(uploadID, result.rows); err != nil {
			record.Status = models.UploadFailed
			record.ErrorDetail = err.Error()
			record.RowsProcessed = 0
			record.RowsFailed = result.total
			earningsModel.RecordUpload(record)
			RespondModelError(c, err)
			return
		}
	}

	switch {
	case len(result.rows) == 0:
		record.Status = models.UploadFailed
		record.ErrorDetail = "no valid rows"
	case record.RowsFailed > 0:
		record.Status = models.UploadPartialSuccess
	default:
		record.Status = models.UploadSuccess
	}
	if len(result.rowErrors) > 0 {
		record.ErrorDetail = strings.Join(result.rowErrors, "; ")
	}

	if err := earningsModel.RecordUpload(record); err != nil {
		RespondModelError(c, err)
		return
	}

	RespondData(c, gin.H{
		"ok":         record.Status != models.UploadFailed,
		"upload_id":  uploadID,
		"status":     record.Status,
		"total":      record.RowsTotal,
		"processed":  record.RowsProcessed,
		"failed":     record.RowsFailed,
		"errors":     result.rowErrors,
	})
}

// History lists recent uploads
func (h *EarningsUploadHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	earningsModel := &models.EarningsModel{DB: h.DB}
	uploads, err := earningsModel.ListUploads(limit)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"uploads": uploads})
}

// Summary returns per-month per-store earnings totals
func (h *EarningsUploadHandler) Summary(c *gin.Context) {
	earningsModel := &models.EarningsModel{DB: h.DB}
	summary, err := earningsModel.SummarizeByMonth()
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"summary": summary})
}

type parseResult struct {
	rows      []models.EarningsRow
	rowErrors []string
	total     int
}

// headerError is a file-level failure: the response includes the headers we
// did find and a few raw lines so the admin can fix the export
type headerError struct {
	message      string
	foundHeaders []string
	sampleLines  []string
}

func parseEarningsFile(r io.Reader, delimiter rune, uploadID string) (*parseResult, *headerError) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, &headerError{message: "file is empty or unreadable"}
	}

	columns := mapColumns(header)
	var missing []string
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		samples := []string{strings.Join(header, string(delimiter))}
		for i := 0; i < 2; i++ {
			line, err := reader.Read()
			if err != nil {
				break
			}
			samples = append(samples, strings.Join(line, string(delimiter)))
		}
		return nil, &headerError{
			message:      fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
			foundHeaders: header,
			sampleLines:  samples,
		}
	}

	result := &parseResult{}
	lineNo := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			result.total++
			result.rowErrors = append(result.rowErrors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		// Skip fully blank lines without counting them
		if isBlankRecord(record) {
			continue
		}
		result.total++

		row, err := buildRow(record, columns, uploadID)
		if err != nil {
			result.rowErrors = append(result.rowErrors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		result.rows = append(result.rows, row)
	}
	return result, nil
}

// mapColumns resolves each canonical column to its index in the header
func mapColumns(header []string) map[string]int {
	columns := map[string]int{}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		for _, canonical := range columnOrder {
			if _, taken := columns[canonical]; taken {
				continue
			}
			for _, syn := range headerSynonyms[canonical] {
				if name == syn {
					columns[canonical] = i
					break
				}
			}
		}
	}
	return columns
}

func buildRow(record []string, columns map[string]int, uploadID string) (models.EarningsRow, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := models.EarningsRow{
		UploadID:     uploadID,
		SaleMonth:    field("sale_month"),
		Store:        field("store"),
		ArtistName:   field("artist_name"),
		ReleaseTitle: field("release_title"),
		TrackTitle:   field("track_title"),
		ISRC:         field("isrc"),
	}
	if row.SaleMonth == "" {
		return row, fmt.Errorf("missing sale month")
	}
	if row.Store == "" {
		return row, fmt.Errorf("missing store")
	}

	rawEarnings := field("earnings")
	if rawEarnings == "" {
		return row, fmt.Errorf("missing earnings")
	}
	earnings, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(rawEarnings, "$"), ",", ""), 64)
	if err != nil {
		return row, fmt.Errorf("invalid earnings value %q", rawEarnings)
	}
	row.EarningsUSD = earnings

	if rawQty := field("quantity"); rawQty != "" {
		qty, err := strconv.Atoi(strings.ReplaceAll(rawQty, ",", ""))
		if err != nil {
			return row, fmt.Errorf("invalid quantity %q", rawQty)
		}
		row.Quantity = qty
	}
	return row, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
