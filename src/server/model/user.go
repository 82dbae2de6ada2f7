// Package models provides database-backed domain models
package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tunecast/tunecast/src/utils"
)

// User represents an artist account
type User struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	ArtistName         string     `json:"artist_name"`
	PasswordHash       string     `json:"-"` // Never serialize password hash
	Role               string     `json:"role"` // user or admin
	IdentityVerified   bool       `json:"identity_verified"`
	IdentityPlatform   string     `json:"identity_platform,omitempty"`
	IdentityUsername   string     `json:"identity_username,omitempty"`
	IdentityData       string     `json:"-"` // raw JSON from the verification scrape
	IdentityVerifiedAt *time.Time `json:"identity_verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// UserModel handles user database operations
type UserModel struct {
	DB *sql.DB
}

// Create creates a new artist account with a hashed password
func (m *UserModel) Create(email, artistName, password string, role ...string) (*User, error) {
	userRole := "user"
	if len(role) > 0 && role[0] != "" {
		userRole = role[0]
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := m.DB.Exec(`
		INSERT INTO users (email, artist_name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, email, artistName, passwordHash, userRole)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return m.GetByID(userID)
}

// GetByID retrieves a user by ID
func (m *UserModel) GetByID(id int64) (*User, error) {
	return m.scanUser(m.DB.QueryRow(`
		SELECT id, email, artist_name, password_hash, role,
		       identity_verified, identity_platform, identity_username, identity_data, identity_verified_at,
		       created_at, updated_at, last_login_at
		FROM users WHERE id = ?
	`, id))
}

// GetByEmail retrieves a user by email
func (m *UserModel) GetByEmail(email string) (*User, error) {
	return m.scanUser(m.DB.QueryRow(`
		SELECT id, email, artist_name, password_hash, role,
		       identity_verified, identity_platform, identity_username, identity_data, identity_verified_at,
		       created_at, updated_at, last_login_at
		FROM users WHERE email = ?
	`, email))
}

func (m *UserModel) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var platform, username, data sql.NullString
	var verifiedAt, lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Email, &user.ArtistName, &user.PasswordHash, &user.Role,
		&user.IdentityVerified, &platform, &username, &data, &verifiedAt,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.IdentityPlatform = platform.String
	user.IdentityUsername = username.String
	user.IdentityData = data.String
	if verifiedAt.Valid {
		user.IdentityVerifiedAt = &verifiedAt.Time
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}

	return user, nil
}

// Authenticate verifies credentials and records the successful login
func (m *UserModel) Authenticate(email, password, ipAddress, userAgent string) (*User, error) {
	user, err := m.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, fmt.Errorf("invalid credentials")
	}

	_, err = m.DB.Exec(`UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = ?`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	if err := m.RecordActivity(user.ID, "login", ipAddress, userAgent); err != nil {
		return nil, err
	}

	return user, nil
}

// RecordActivity appends a user activity row (login, logout, etc.)
func (m *UserModel) RecordActivity(userID int64, activityType, ipAddress, userAgent string) error {
	_, err := m.DB.Exec(`
		INSERT INTO user_activity (user_id, activity_type, ip_address, user_agent)
		VALUES (?, ?, ?, ?)
	`, userID, activityType, ipAddress, userAgent)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// SetIdentityVerification stores a moderation decision on an account.
// Clearing verification wipes the platform metadata too.
func (m *UserModel) SetIdentityVerification(userID int64, verified bool, platform, username, rawData string) error {
	var result sql.Result
	var err error
	if verified {
		result, err = m.DB.Exec(`
			UPDATE users
			SET identity_verified = 1, identity_platform = ?, identity_username = ?,
			    identity_data = ?, identity_verified_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, platform, username, rawData, userID)
	} else {
		result, err = m.DB.Exec(`
			UPDATE users
			SET identity_verified = 0, identity_platform = NULL, identity_username = NULL,
			    identity_data = NULL, identity_verified_at = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update identity verification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every account, newest first (admin use)
func (m *UserModel) ListAll(limit, offset int) ([]*User, error) {
	rows, err := m.DB.Query(`
		SELECT id, email, artist_name, password_hash, role,
		       identity_verified, identity_platform, identity_username, identity_data, identity_verified_at,
		       created_at, updated_at, last_login_at
		FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		var platform, username, data sql.NullString
		var verifiedAt, lastLogin sql.NullTime
		if err := rows.Scan(&user.ID, &user.Email, &user.ArtistName, &user.PasswordHash, &user.Role,
			&user.IdentityVerified, &platform, &username, &data, &verifiedAt,
			&user.CreatedAt, &user.UpdatedAt, &lastLogin); err != nil {
			return nil, err
		}
		user.IdentityPlatform = platform.String
		user.IdentityUsername = username.String
		user.IdentityData = data.String
		if verifiedAt.Valid {
			user.IdentityVerifiedAt = &verifiedAt.Time
		}
		if lastLogin.Valid {
			user.LastLoginAt = &lastLogin.Time
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListUserIDs returns every non-admin user id with signup time, for the
// lifecycle nudge dispatcher
func (m *UserModel) ListUserIDs() ([]struct {
	ID        int64
	CreatedAt time.Time
}, error) {
	rows, err := m.DB.Query(`SELECT id, created_at FROM users WHERE role = 'user' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []struct {
		ID        int64
		CreatedAt time.Time
	}
	for rows.Next() {
		var rec struct {
			ID        int64
			CreatedAt time.Time
		}
		if err := rows.Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
