package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/tunecast/tunecast/src/config"
	"github.com/tunecast/tunecast/src/server/metrics"
	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the review queue, user moderation and metrics
type AdminHandler struct {
	DB     *sql.DB
	Config *config.Config
	Cache  *service.CacheManager
}

// ReviewQueue lists releases awaiting review, oldest submission first
func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	releaseModel := &models.ReleaseModel{DB: h.DB}
	releases, err := releaseModel.ListByStatus(models.StatusUnderReview)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"releases": releases})
}

// GetRelease returns any release by id with tracks (no ownership filter)
func (h *AdminHandler) GetRelease(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid release id")
		return
	}
	releaseModel := &models.ReleaseModel{DB: h.DB}
	release, err := releaseModel.GetByID(id)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"release": release})
}

// Approve moves an under_review release to approved
func (h *AdminHandler) Approve(c *gin.Context) {
	h.review(c, models.StatusApproved, "")
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject moves an under_review release to rejected with a reason
func (h *AdminHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "reason is required")
		return
	}
	h.review(c, models.StatusRejected, req.Reason)
}

// MarkSent moves an approved release to sent_to_stores
func (h *AdminHandler) MarkSent(c *gin.Context) {
	h.review(c, models.StatusSentToStores, "")
}

// RequestTakedown starts the takedown flow for a live release
func (h *AdminHandler) RequestTakedown(c *gin.Context) {
	h.review(c, models.StatusTakedownRequested, "")
}

// CompleteTakedown finalizes a takedown
func (h *AdminHandler) CompleteTakedown(c *gin.Context) {
	h.review(c, models.StatusTakedown, "")
}

func (h *AdminHandler) review(c *gin.Context, to models.ReleaseStatus, reason string) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid release id")
		return
	}

	releaseModel := &models.ReleaseModel{DB: h.DB}
	release, err := releaseModel.SetStatus(id, to, reason)
	if err != nil {
		RespondModelError(c, err)
		return
	}

	switch to {
	case models.StatusApproved, models.StatusRejected:
		metrics.ReleasesReviewed.WithLabelValues(string(to)).Inc()
	}
	if h.Cache != nil {
		h.Cache.InvalidateRelease(release.Slug)
	}
	RespondData(c, gin.H{"ok": true, "release": release})
}

// ListUsers returns accounts for moderation, newest first
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	userModel := &models.UserModel{DB: h.DB}
	users, err := userModel.ListAll(limit, offset)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"users": users})
}

type identityRequest struct {
	Verified bool   `json:"verified"`
	Platform string `json:"platform"`
	Username string `json:"username"`
	RawData  string `json:"raw_data"`
}

// SetIdentity records an identity moderation decision on an account
func (h *AdminHandler) SetIdentity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid user id")
		return
	}

	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid identity payload")
		return
	}

	userModel := &models.UserModel{DB: h.DB}
	if err := userModel.SetIdentityVerification(id, req.Verified, req.Platform, req.Username, req.RawData); err != nil {
		RespondModelError(c, err)
		return
	}
	RespondSuccess(c, "Identity verification updated")
}

// Metrics serves the dashboard aggregates for a trailing window
func (h *AdminHandler) Metrics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 || days > 730 {
		days = 30
	}

	metricsModel := &models.AdminMetricsModel{
		DB: h.DB,
		Pricing: models.PlanPricing{
			PlusMonthlyCents: int64(h.Config.Plans.PlusMonthlyCents),
			ProMonthlyCents:  int64(h.Config.Plans.ProMonthlyCents),
		},
	}
	overview, err := metricsModel.Overview(days, time.Now())
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, overview)
}

// TopicAnalysis returns the latest completed aggregation for a tier/range
func (h *AdminHandler) TopicAnalysis(c *gin.Context) {
	tier := models.Tier(c.DefaultQuery("tier", string(models.TierTrial)))
	if !tier.Valid() {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "unknown tier")
		return
	}
	rangeDays, _ := strconv.Atoi(c.DefaultQuery("range", "7"))
	if rangeDays != 7 && rangeDays != 30 && rangeDays != 90 {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "range must be 7, 30 or 90")
		return
	}

	analysisModel := &models.TopicAnalysisModel{DB: h.DB}
	analysis, err := analysisModel.Latest(tier, rangeDays)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"analysis": analysis})
}
