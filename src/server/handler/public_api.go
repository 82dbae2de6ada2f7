package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"

	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves unauthenticated release pages
type PublicHandler struct {
	DB    *sql.DB
	Cache *service.CacheManager
}

// publicRelease is the shape exposed on the public page; internal fields
// (artist id, review metadata, agreement flags) never leave the server
type publicRelease struct {
	ArtistName        string                 `json:"artistName"`
	ReleaseTitle      string                 `json:"releaseTitle"`
	ArtworkURL        string                 `json:"artworkUrl,omitempty"`
	StreamingServices []models.StreamingLink `json:"streamingServices"`
	FanEngagement     *models.FanEngagement  `json:"fanEngagement,omitempty"`
	Status            models.ReleaseStatus   `json:"status"`
	CreatedAt         string                 `json:"createdAt"`
	HasParsedData     bool                   `json:"hasParsedData"`
}

// GetRelease serves a release page by slug. Only approved and
// sent_to_stores releases are public; everything else is a 404.
func (h *PublicHandler) GetRelease(c *gin.Context) {
	slug := c.Param("slug")

	if h.Cache != nil {
		if cached, err := h.Cache.Get(service.CacheKeyPublicRelease + slug); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	releaseModel := &models.ReleaseModel{DB: h.DB}
	release, err := releaseModel.GetBySlug(slug)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	if release.Status != models.StatusApproved && release.Status != models.StatusSentToStores {
		RespondError(c, http.StatusNotFound, ErrNotFound, "Not found")
		return
	}

	userModel := &models.UserModel{DB: h.DB}
	artist, err := userModel.GetByID(release.ArtistID)
	if err != nil {
		RespondModelError(c, err)
		return
	}

	links := release.ParsedLinks
	if links == nil {
		links = []models.StreamingLink{}
	}
	payload := gin.H{
		"release": publicRelease{
			ArtistName:        artist.ArtistName,
			ReleaseTitle:      release.ReleaseTitle,
			ArtworkURL:        release.AlbumCoverURL,
			StreamingServices: links,
			FanEngagement:     release.FanEngagement,
			Status:            release.Status,
			CreatedAt:         release.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			HasParsedData:     release.HasParsedData,
		},
	}

	if h.Cache != nil {
		if body, err := json.Marshal(payload); err == nil {
			h.Cache.Set(service.CacheKeyPublicRelease+slug, string(body), service.PublicReleaseTTL)
		}
	}
	c.JSON(http.StatusOK, payload)
}
