package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tunecast/tunecast/src/database"
	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

func TestMapColumnsSynonyms(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   map[string]int
	}{
		{
			"canonical names",
			[]string{"sale_month", "store", "earnings"},
			map[string]int{"sale_month": 0, "store": 1, "earnings": 2},
		},
		{
			"store export dialect",
			[]string{"Reporting Period", "DSP", "Net Revenue", "Streams"},
			map[string]int{"sale_month": 0, "store": 1, "earnings": 2, "quantity": 3},
		},
		{
			"mixed case and padding",
			[]string{" Month ", "PLATFORM", "Amount Due", "Artist Name", "Song Title"},
			map[string]int{"sale_month": 0, "store": 1, "earnings": 2, "artist_name": 3, "track_title": 4},
		},
		{
			"BOM on first header",
			[]string{"\ufeffsale month", "retailer", "royalty"},
			map[string]int{"sale_month": 0, "store": 1, "earnings": 2},
		},
		{
			"unknown headers ignored",
			[]string{"month", "store", "earnings", "internal_ref", "currency"},
			map[string]int{"sale_month": 0, "store": 1, "earnings": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapColumns(tt.header)
			if len(got) != len(tt.want) {
				t.Fatalf("mapped %d columns, want %d (%v)", len(got), len(tt.want), got)
			}
			for col, idx := range tt.want {
				if got[col] != idx {
					t.Errorf("column %s mapped to index %d, want %d", col, got[col], idx)
				}
			}
		})
	}
}

func TestParseEarningsFile(t *testing.T) {
	csvData := strings.Join([]string{
		"Sale Month,Store,Earnings (USD),Quantity",
		"2026-07,Spotify,\"$1,234.56\",9001",
		"2026-07,Apple Music,89.10,120",
		"",
		"2026-07,Deezer,not-a-number,5",
		"2026-07,,12.00,3",
	}, "\n")

	result, headerErr := parseEarningsFile(strings.NewReader(csvData), ',', "up_test")
	if headerErr != nil {
		t.Fatalf("unexpected header error: %s", headerErr.message)
	}

	if result.total != 4 {
		t.Errorf("total = %d, want 4 (blank line must not count)", result.total)
	}
	if len(result.rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(result.rows))
	}
	if len(result.rowErrors) != 2 {
		t.Errorf("collected %d row errors, want 2: %v", len(result.rowErrors), result.rowErrors)
	}

	first := result.rows[0]
	if first.EarningsUSD != 1234.56 {
		t.Errorf("earnings = %v, want 1234.56 (currency symbols and thousands separators stripped)", first.EarningsUSD)
	}
	if first.Quantity != 9001 {
		t.Errorf("quantity = %d, want 9001", first.Quantity)
	}
	if first.SaleMonth != "2026-07" || first.Store != "Spotify" {
		t.Errorf("unexpected row fields: %+v", first)
	}
}

func TestParseEarningsFileTSV(t *testing.T) {
	tsvData := "month\tplatform\trevenue\n2026-06\tTidal\t42.50\n"

	result, headerErr := parseEarningsFile(strings.NewReader(tsvData), '\t', "up_test")
	if headerErr != nil {
		t.Fatalf("unexpected header error: %s", headerErr.message)
	}
	if len(result.rows) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(result.rows))
	}
	if result.rows[0].Store != "Tidal" || result.rows[0].EarningsUSD != 42.5 {
		t.Errorf("unexpected row: %+v", result.rows[0])
	}
}

func TestParseEarningsFileMissingColumns(t *testing.T) {
	csvData := strings.Join([]string{
		"Artist,Title,Some Internal Column",
		"Nova Waves,Midnight Drive,x",
		"Nova Waves,Sunset Loop,y",
	}, "\n")

	result, headerErr := parseEarningsFile(strings.NewReader(csvData), ',', "up_test")
	if headerErr == nil {
		t.Fatalf("expected header error, got result %+v", result)
	}
	for _, col := range []string{"sale_month", "store", "earnings"} {
		if !strings.Contains(headerErr.message, col) {
			t.Errorf("header error %q does not name missing column %s", headerErr.message, col)
		}
	}
	if len(headerErr.foundHeaders) != 3 {
		t.Errorf("foundHeaders = %v, want the 3 original headers", headerErr.foundHeaders)
	}
	if len(headerErr.sampleLines) != 3 {
		t.Errorf("sampleLines = %d lines, want header plus 2 data lines", len(headerErr.sampleLines))
	}
}

func TestParseEarningsFileEmpty(t *testing.T) {
	if _, headerErr := parseEarningsFile(strings.NewReader(""), ',', "up_test"); headerErr == nil {
		t.Error("empty file should produce a header error")
	}
}

func TestUploadRecordsPartialSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.InitDB(":memory:")
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userModel := &models.UserModel{DB: db.DB}
	admin, err := userModel.Create("admin@example.com", "Ops", "admin-password-1", "admin")
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	h := &EarningsUploadHandler{DB: db.DB}
	router.POST("/upload", func(c *gin.Context) {
		c.Set(middleware.UserContextKey, admin)
	}, h.Upload)

	tsvData := "Sale Month\tStore\tEarnings (USD)\n" +
		"2026-07\tSpotify\t100.25\n" +
		"2026-07\tTidal\t\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "july.tsv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(tsvData))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != models.UploadPartialSuccess {
		t.Errorf("status = %v, want partial_success", body["status"])
	}
	if body["processed"].(float64) != 1 || body["failed"].(float64) != 1 {
		t.Errorf("processed/failed = %v/%v, want 1/1", body["processed"], body["failed"])
	}
	rowErrors, _ := body["errors"].([]interface{})
	if len(rowErrors) != 1 {
		t.Errorf("errors = %v, want exactly the missing-earnings line", rowErrors)
	}

	earningsModel := &models.EarningsModel{DB: db.DB}
	uploads, err := earningsModel.ListUploads(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 {
		t.Fatalf("upload_history has %d rows, want 1", len(uploads))
	}
	rec := uploads[0]
	if rec.Status != models.UploadPartialSuccess {
		t.Errorf("audit status = %s, want partial_success", rec.Status)
	}
	if rec.RowsTotal != 2 || rec.RowsProcessed != 1 || rec.RowsFailed != 1 {
		t.Errorf("audit counts total/processed/failed = %d/%d/%d, want 2/1/1",
			rec.RowsTotal, rec.RowsProcessed, rec.RowsFailed)
	}
	if rec.AdminID != admin.ID {
		t.Errorf("audit admin_id = %d, want %d", rec.AdminID, admin.ID)
	}
}

func TestBuildRowQuantityOptional(t *testing.T) {
	columns := map[string]int{"sale_month": 0, "store": 1, "earnings": 2}
	row, err := buildRow([]string{"2026-05", "Bandcamp", "10.00"}, columns, "up_test")
	if err != nil {
		t.Fatalf("row without quantity column should parse: %v", err)
	}
	if row.Quantity != 0 {
		t.Errorf("quantity = %d, want 0 when absent", row.Quantity)
	}
}
