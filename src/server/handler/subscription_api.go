package handler

import (
	"database/sql"
	"net/http"

	"github.com/tunecast/tunecast/src/config"
	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler serves subscription state and entitlements
type SubscriptionHandler struct {
	DB     *sql.DB
	Config *config.Config
}

// Get returns the account's subscription row
func (h *SubscriptionHandler) Get(c *gin.Context) {
	user := middleware.GetUser(c)
	subModel := &models.SubscriptionModel{DB: h.DB}
	sub, err := subModel.GetByUserID(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"subscription": sub})
}

// Entitlements returns the derived feature and usage picture the frontend
// gates its UI on
func (h *SubscriptionHandler) Entitlements(c *gin.Context) {
	user := middleware.GetUser(c)
	entModel := &models.EntitlementModel{DB: h.DB}
	ent, err := entModel.Resolve(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"entitlement": ent})
}

// Plans returns the public plan catalog with prices from config
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plans": []gin.H{
			{
				"tier":          models.TierTrial,
				"monthly_cents": 0,
				"trial_days":    h.Config.Plans.TrialDays,
				"features":      []string{"1 free release", "AI assistant (daily limit)"},
			},
			{
				"tier":          models.TierPlus,
				"monthly_cents": h.Config.Plans.PlusMonthlyCents,
				"features":      []string{"10 concurrent submissions", "analytics", "fan engagement", "AI assistant (monthly limit)"},
			},
			{
				"tier":          models.TierPro,
				"monthly_cents": h.Config.Plans.ProMonthlyCents,
				"features":      []string{"25 concurrent submissions", "analytics", "fan engagement", "custom label", "priority review", "unlimited AI assistant"},
			},
		},
	})
}
