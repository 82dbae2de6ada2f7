package middleware

import (
	"database/sql"
	"net/http"
	"strings"

	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

const (
	UserContextKey  = "user"
	TokenContextKey = "api_token"
)

// AuthMiddleware resolves a Bearer token (usr_/adm_) to its account and
// stores it in the request context
func AuthMiddleware(db *sql.DB, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenModel := &models.TokenModel{DB: db}
		userModel := &models.UserModel{DB: db}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token, err := tokenModel.Validate(parts[1])
				if err == nil {
					user, err := userModel.GetByID(token.OwnerID)
					if err == nil {
						// Stamp last-used off the request path
						go tokenModel.UpdateLastUsed(token.ID)
						c.Set(UserContextKey, user)
						c.Set(TokenContextKey, token)
						c.Next()
						return
					}
				}
			}
		}

		if required {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAuth requires a valid token
func RequireAuth(db *sql.DB) gin.HandlerFunc {
	return AuthMiddleware(db, true)
}

// OptionalAuth resolves a token when present but never rejects
func OptionalAuth(db *sql.DB) gin.HandlerFunc {
	return AuthMiddleware(db, false)
}

// GetUser extracts the authenticated user from the context
func GetUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
