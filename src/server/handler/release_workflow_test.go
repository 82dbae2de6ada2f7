package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tunecast/tunecast/src/database"
	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// apiRouter wires the artist-facing surface the way the server does, minus
// rate limiting and background services
func apiRouter(t *testing.T) (*gin.Engine, *database.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.InitDB(":memory:")
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	authHandler := &AuthHandler{DB: db.DB, TrialDays: 14}
	releaseHandler := &ReleaseHandler{DB: db.DB}
	publicHandler := &PublicHandler{DB: db.DB}

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/register", authHandler.Register)
	api.GET("/public/release/:slug", publicHandler.GetRelease)

	user := api.Group("")
	user.Use(middleware.RequireAuth(db.DB))
	user.POST("/releases", releaseHandler.Create)
	user.GET("/releases/:id", releaseHandler.Get)
	user.PUT("/releases/:id/step", releaseHandler.SaveStep)
	user.DELETE("/releases/:id", releaseHandler.Delete)

	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

func registerArtist(t *testing.T, router *gin.Engine, email string) (string, int64) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":       email,
		"artist_name": "Nova Waves",
		"password":    "correct-horse-battery",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register response missing token")
	}
	userObj, _ := body["user"].(map[string]interface{})
	id, _ := userObj["id"].(float64)
	return token, int64(id)
}

func singleTrack() []gin.H {
	return []gin.H{{
		"track_number": 1,
		"track_title":  "Midnight Drive",
		"artist_names": []string{"Nova Waves"},
		"songwriters": []gin.H{
			{"firstName": "Ada", "lastName": "Nowak", "role": "Composer"},
		},
	}}
}

func TestReleaseSubmissionWorkflow(t *testing.T) {
	router, db := apiRouter(t)
	token, userID := registerArtist(t, router, "nova@example.com")

	// Draft creation
	w := doJSON(t, router, http.MethodPost, "/api/v1/releases", token, gin.H{
		"release": gin.H{
			"distribution_type": "Single",
			"release_title":     "Midnight Drive",
			"selected_stores":   []string{"Spotify", "Apple Music"},
		},
		"tracks": singleTrack(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create release returned %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)["release"].(map[string]interface{})
	releaseID := int64(created["id"].(float64))
	if created["status"] != "draft" {
		t.Errorf("new release status = %v, want draft", created["status"])
	}

	stepPath := fmt.Sprintf("/api/v1/releases/%d/step", releaseID)
	releaseDate := time.Now().AddDate(0, 0, 14).Format("2006-01-02")

	// Step 1: basic info
	w = doJSON(t, router, http.MethodPut, stepPath, token, gin.H{
		"step":    1,
		"release": gin.H{"release_date": releaseDate, "genre": "Electronic"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("step 1 returned %d: %s", w.Code, w.Body.String())
	}

	// Step 2: tracks
	w = doJSON(t, router, http.MethodPut, stepPath, token, gin.H{
		"step":   2,
		"tracks": singleTrack(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("step 2 returned %d: %s", w.Code, w.Body.String())
	}

	// Submission before identity verification must be refused
	submitPayload := gin.H{
		"step":              3,
		"release":           gin.H{"terms_agreed": true, "fair_use_agreed": true},
		"submit_for_review": true,
	}
	w = doJSON(t, router, http.MethodPut, stepPath, token, submitPayload)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unverified submission returned %d, want 403: %s", w.Code, w.Body.String())
	}

	userModel := &models.UserModel{DB: db.DB}
	if err := userModel.SetIdentityVerification(userID, true, "instagram", "novawaves", ""); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, router, http.MethodPut, stepPath, token, submitPayload)
	if w.Code != http.StatusOK {
		t.Fatalf("submission returned %d: %s", w.Code, w.Body.String())
	}
	submitted := decodeBody(t, w)["release"].(map[string]interface{})
	if submitted["status"] != "under_review" {
		t.Errorf("submitted status = %v, want under_review", submitted["status"])
	}

	// Trial's one free release is spent on submission
	subModel := &models.SubscriptionModel{DB: db.DB}
	sub, err := subModel.GetByUserID(userID)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.FreeReleaseUsed {
		t.Error("free_release_used not flipped after submission")
	}

	// A second draft is now blocked by the trial entitlement
	w = doJSON(t, router, http.MethodPost, "/api/v1/releases", token, gin.H{
		"release": gin.H{
			"distribution_type": "Single",
			"release_title":     "Second Single",
		},
		"tracks": singleTrack(),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("second trial release returned %d, want 403: %s", w.Code, w.Body.String())
	}
}

func TestPaidTierSubmitWithoutIdentityVerification(t *testing.T) {
	router, db := apiRouter(t)
	token, userID := registerArtist(t, router, "pro@example.com")

	subModel := &models.SubscriptionModel{DB: db.DB}
	periodEnd := time.Now().AddDate(0, 1, 0)
	if err := subModel.ApplyBillingUpdate(userID, models.TierPro, models.SubStatusActive, "cus_pro", "sub_pro", &periodEnd); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/releases", token, gin.H{
		"release": gin.H{
			"distribution_type": "Single",
			"release_title":     "No Gatekeeping",
			"selected_stores":   []string{"Spotify"},
		},
		"tracks": singleTrack(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	releaseID := int64(decodeBody(t, w)["release"].(map[string]interface{})["id"].(float64))
	stepPath := fmt.Sprintf("/api/v1/releases/%d/step", releaseID)

	w = doJSON(t, router, http.MethodPut, stepPath, token, gin.H{
		"step":    1,
		"release": gin.H{"release_date": time.Now().AddDate(0, 0, 14).Format("2006-01-02")},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("step 1 returned %d: %s", w.Code, w.Body.String())
	}

	// Paid tiers submit without identity verification
	w = doJSON(t, router, http.MethodPut, stepPath, token, gin.H{
		"step":              3,
		"release":           gin.H{"terms_agreed": true, "fair_use_agreed": true},
		"submit_for_review": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("pro submission returned %d, want 200: %s", w.Code, w.Body.String())
	}
	submitted := decodeBody(t, w)["release"].(map[string]interface{})
	if submitted["status"] != "under_review" {
		t.Errorf("submitted status = %v, want under_review", submitted["status"])
	}

	// The trial free-release flag is untouched for paid tiers
	sub, err := subModel.GetByUserID(userID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.FreeReleaseUsed {
		t.Error("free_release_used flipped for a pro submission")
	}
}

func TestReleaseOwnershipHidesExistence(t *testing.T) {
	router, _ := apiRouter(t)
	ownerToken, _ := registerArtist(t, router, "owner@example.com")
	otherToken, _ := registerArtist(t, router, "other@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/v1/releases", ownerToken, gin.H{
		"release": gin.H{"distribution_type": "Single", "release_title": "Private Draft"},
		"tracks":  singleTrack(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	releaseID := int64(decodeBody(t, w)["release"].(map[string]interface{})["id"].(float64))

	path := fmt.Sprintf("/api/v1/releases/%d", releaseID)
	if w := doJSON(t, router, http.MethodGet, path, otherToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign release returned %d, want 404", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, path, ownerToken, nil); w.Code != http.StatusOK {
		t.Errorf("owned release returned %d, want 200", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request returned %d, want 401", w.Code)
	}
}

func TestPublicPageOnlyForLiveReleases(t *testing.T) {
	router, db := apiRouter(t)
	token, _ := registerArtist(t, router, "live@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/v1/releases", token, gin.H{
		"release": gin.H{"distribution_type": "Single", "release_title": "Big Tune"},
		"tracks":  singleTrack(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)["release"].(map[string]interface{})
	releaseID := int64(created["id"].(float64))
	slug := created["slug"].(string)

	publicPath := "/api/v1/public/release/" + slug

	// Drafts have no public page
	if w := doJSON(t, router, http.MethodGet, publicPath, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("draft public page returned %d, want 404", w.Code)
	}

	releaseModel := &models.ReleaseModel{DB: db.DB}
	if _, err := db.Exec(`UPDATE releases SET status = 'under_review' WHERE id = ?`, releaseID); err != nil {
		t.Fatal(err)
	}
	if _, err := releaseModel.SetStatus(releaseID, models.StatusApproved, ""); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, router, http.MethodGet, publicPath, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approved public page returned %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	page, _ := body["release"].(map[string]interface{})
	if page == nil {
		t.Fatalf("public payload missing release object: %s", w.Body.String())
	}
	if page["releaseTitle"] != "Big Tune" {
		t.Errorf("releaseTitle = %v, want Big Tune", page["releaseTitle"])
	}
	if _, leaked := page["artist_id"]; leaked {
		t.Error("public payload leaks artist_id")
	}
}
