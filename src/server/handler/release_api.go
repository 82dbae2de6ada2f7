package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/tunecast/tunecast/src/server/metrics"
	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
)

// ReleaseHandler serves the artist-facing release workflow
type ReleaseHandler struct {
	DB         *sql.DB
	LinkParser *service.LinkParser
	Cache      *service.CacheManager
}

type createReleaseRequest struct {
	Release models.Release  `json:"release"`
	Tracks  []*models.Track `json:"tracks"`
}

// Create starts a new draft, gated on the artist's entitlement
func (h *ReleaseHandler) Create(c *gin.Context) {
	user := middleware.GetUser(c)

	var req createReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid release payload")
		return
	}

	entModel := &models.EntitlementModel{DB: h.DB}
	ent, err := entModel.Resolve(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	if !ent.CanCreateRelease() {
		RespondError(c, http.StatusForbidden, ErrForbidden, "Your current plan does not allow creating another release")
		return
	}

	releaseModel := &models.ReleaseModel{DB: h.DB}
	release, err := releaseModel.Create(user.ID, &req.Release, req.Tracks)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "release": release})
}

// List returns the artist's releases, newest first
func (h *ReleaseHandler) List(c *gin.Context) {
	user := middleware.GetUser(c)
	releaseModel := &models.ReleaseModel{DB: h.DB}
	releases, err := releaseModel.ListByArtist(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"releases": releases})
}

// Get returns one owned release with tracks
func (h *ReleaseHandler) Get(c *gin.Context) {
	user := middleware.GetUser(c)
	release, ok := h.ownedRelease(c, user.ID)
	if !ok {
		return
	}
	RespondData(c, gin.H{"release": release})
}

type saveStepRequest struct {
	Step            int             `json:"step" binding:"required"`
	Release         *models.Release `json:"release"`
	Tracks          []*models.Track `json:"tracks"`
	SubmitForReview bool            `json:"submit_for_review"`
}

// SaveStep validates and persists one wizard step; with submit_for_review
// it runs the full submission checks and moves the release to under_review
func (h *ReleaseHandler) SaveStep(c *gin.Context) {
	user := middleware.GetUser(c)
	release, ok := h.ownedRelease(c, user.ID)
	if !ok {
		return
	}

	var req saveStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid step payload")
		return
	}

	subModel := &models.SubscriptionModel{DB: h.DB}
	sub, err := subModel.GetByUserID(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	// Identity verification only gates trial submissions
	identityOK := user.IdentityVerified || sub.Tier != models.TierTrial

	releaseModel := &models.ReleaseModel{DB: h.DB}
	updated, err := releaseModel.SaveStep(release, models.StepInput{
		Step:            req.Step,
		Release:         req.Release,
		Tracks:          req.Tracks,
		SubmitForReview: req.SubmitForReview,
	}, identityOK, time.Now())
	if err != nil {
		RespondModelError(c, err)
		return
	}

	if req.SubmitForReview {
		metrics.ReleasesSubmitted.Inc()
		// Trial accounts spend their single free release on first submission
		if sub.Tier == models.TierTrial {
			if _, err := subModel.MarkFreeReleaseUsed(user.ID); err != nil {
				RespondModelError(c, err)
				return
			}
		}
	}

	// Edits can pull a live release off its public page
	if h.Cache != nil && updated.Status != release.Status {
		h.Cache.InvalidateRelease(release.Slug)
	}

	RespondData(c, gin.H{"ok": true, "release": updated})
}

// Delete removes a draft release
func (h *ReleaseHandler) Delete(c *gin.Context) {
	user := middleware.GetUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid release id")
		return
	}

	releaseModel := &models.ReleaseModel{DB: h.DB}
	if err := releaseModel.Delete(id, user.ID); err != nil {
		RespondModelError(c, err)
		return
	}
	RespondSuccess(c, "Release deleted")
}

type parseLinksRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// ParseLinks resolves streaming URLs for an owned release and stores them
func (h *ReleaseHandler) ParseLinks(c *gin.Context) {
	user := middleware.GetUser(c)
	release, ok := h.ownedRelease(c, user.ID)
	if !ok {
		return
	}

	var req parseLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "urls are required")
		return
	}

	links, err := h.LinkParser.ParseAndStore(c.Request.Context(), release.ID, req.URLs)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}
	if h.Cache != nil {
		h.Cache.InvalidateRelease(release.Slug)
	}
	RespondData(c, gin.H{"ok": true, "links": links})
}

// ownedRelease loads :id and enforces ownership. A miss of either kind is
// a 404; existence is never revealed to non-owners.
func (h *ReleaseHandler) ownedRelease(c *gin.Context, userID int64) (*models.Release, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid release id")
		return nil, false
	}

	releaseModel := &models.ReleaseModel{DB: h.DB}
	release, err := releaseModel.GetForArtist(id, userID)
	if err != nil {
		RespondModelError(c, err)
		return nil, false
	}
	return release, true
}
