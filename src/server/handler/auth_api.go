package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves registration, login and token management
type AuthHandler struct {
	DB        *sql.DB
	TrialDays int
}

type registerRequest struct {
	Email      string `json:"email" binding:"required"`
	ArtistName string `json:"artist_name" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Register creates an account, its trial subscription, and a first token
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "email, artist_name and password are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "password must be at least 8 characters")
		return
	}

	userModel := &models.UserModel{DB: h.DB}
	if _, err := userModel.GetByEmail(req.Email); err == nil {
		RespondError(c, http.StatusConflict, ErrConflict, "An account with this email already exists")
		return
	}

	user, err := userModel.Create(req.Email, req.ArtistName, req.Password)
	if err != nil {
		RespondModelError(c, err)
		return
	}

	subModel := &models.SubscriptionModel{DB: h.DB}
	if _, err := subModel.EnsureTrial(user.ID, h.TrialDays); err != nil {
		RespondModelError(c, err)
		return
	}

	tokenModel := &models.TokenModel{DB: h.DB}
	token, err := tokenModel.Create(user.ID, "default", false, "never")
	if err != nil {
		RespondModelError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":    true,
		"user":  user,
		"token": token.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a fresh token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "email and password are required")
		return
	}

	userModel := &models.UserModel{DB: h.DB}
	user, err := userModel.Authenticate(req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondError(c, http.StatusUnauthorized, ErrUnauthorized, "Invalid credentials")
		return
	}

	tokenModel := &models.TokenModel{DB: h.DB}
	token, err := tokenModel.Create(user.ID, "login", user.IsAdmin(), "1month")
	if err != nil {
		RespondModelError(c, err)
		return
	}

	RespondData(c, gin.H{
		"ok":    true,
		"user":  user,
		"token": token.Token,
	})
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetUser(c)
	RespondData(c, gin.H{"user": user})
}

type createTokenRequest struct {
	Name       string `json:"name" binding:"required"`
	Expiration string `json:"expiration"`
}

// CreateToken issues a named API token for the authenticated account
func (h *AuthHandler) CreateToken(c *gin.Context) {
	user := middleware.GetUser(c)

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "name is required")
		return
	}
	expiration := req.Expiration
	if expiration == "" {
		expiration = "never"
	}
	if _, ok := models.ExpirationOptions[expiration]; !ok {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "unknown expiration option")
		return
	}

	tokenModel := &models.TokenModel{DB: h.DB}
	token, err := tokenModel.Create(user.ID, req.Name, user.IsAdmin(), expiration)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "token": token})
}

// ListTokens returns the account's tokens (hashes excluded)
func (h *AuthHandler) ListTokens(c *gin.Context) {
	user := middleware.GetUser(c)
	tokenModel := &models.TokenModel{DB: h.DB}
	tokens, err := tokenModel.ListByOwner(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"tokens": tokens})
}

// RevokeToken deletes one of the account's tokens
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	user := middleware.GetUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid token id")
		return
	}

	tokenModel := &models.TokenModel{DB: h.DB}
	if err := tokenModel.Revoke(id, user.ID); err != nil {
		RespondModelError(c, err)
		return
	}
	RespondSuccess(c, "Token revoked")
}
