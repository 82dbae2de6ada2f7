package models

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Token represents an API token. The raw value is shown once at creation;
// only the SHA-256 hash is stored.
type Token struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Name        string     `json:"name"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"` // First 8 chars for display
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Only populated on creation, never stored
	Token string `json:"token,omitempty"`
}

// Token prefixes
const (
	PrefixUser  = "usr_"
	PrefixAdmin = "adm_"
)

// ExpirationOptions maps the supported expiry labels to durations
var ExpirationOptions = map[string]time.Duration{
	"never":   0, // NULL in database
	"7days":   7 * 24 * time.Hour,
	"1month":  30 * 24 * time.Hour,
	"6months": 180 * 24 * time.Hour,
	"1year":   365 * 24 * time.Hour,
}

// GenerateTokenWithPrefix generates a token: {prefix}{random_32_hex}
func GenerateTokenWithPrefix(prefix string) (string, error) {
	bytes := make([]byte, 16) // 16 bytes = 32 hex chars
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + hex.EncodeToString(bytes), nil
}

// HashToken creates the SHA-256 hash stored at rest
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenDisplayPrefix returns the first 8 chars for display
func TokenDisplayPrefix(token string) string {
	if len(token) < 8 {
		return token
	}
	return token[:8]
}

// ValidateTokenFormat checks prefix and length
func ValidateTokenFormat(token string) error {
	switch {
	case strings.HasPrefix(token, PrefixUser):
		if len(token) != len(PrefixUser)+32 {
			return fmt.Errorf("invalid user token format")
		}
	case strings.HasPrefix(token, PrefixAdmin):
		if len(token) != len(PrefixAdmin)+32 {
			return fmt.Errorf("invalid admin token format")
		}
	default:
		return fmt.Errorf("invalid token prefix: must be usr_ or adm_")
	}
	return nil
}

// TokenModel handles token database operations
type TokenModel struct {
	DB *sql.DB
}

// Create issues a token for an owner. Admin accounts get adm_ tokens.
func (m *TokenModel) Create(ownerID int64, name string, isAdmin bool, expiration string) (*Token, error) {
	prefix := PrefixUser
	if isAdmin {
		prefix = PrefixAdmin
	}

	raw, err := GenerateTokenWithPrefix(prefix)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if dur, ok := ExpirationOptions[expiration]; ok && dur > 0 {
		t := time.Now().Add(dur)
		expiresAt = &t
	}

	result, err := m.DB.Exec(`
		INSERT INTO tokens (owner_id, name, token_hash, token_prefix, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, ownerID, name, HashToken(raw), TokenDisplayPrefix(raw), expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	token, err := m.GetByID(id)
	if err != nil {
		return nil, err
	}
	token.Token = raw
	return token, nil
}

// GetByID retrieves a token row by ID
func (m *TokenModel) GetByID(id int64) (*Token, error) {
	return m.scanToken(m.DB.QueryRow(`
		SELECT id, owner_id, name, token_hash, token_prefix, expires_at, last_used_at, created_at
		FROM tokens WHERE id = ?
	`, id))
}

// Validate resolves a raw bearer token to its row, rejecting unknown and
// expired tokens
func (m *TokenModel) Validate(raw string) (*Token, error) {
	if err := ValidateTokenFormat(raw); err != nil {
		return nil, err
	}

	token, err := m.scanToken(m.DB.QueryRow(`
		SELECT id, owner_id, name, token_hash, token_prefix, expires_at, last_used_at, created_at
		FROM tokens WHERE token_hash = ?
	`, HashToken(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}

	if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
		return nil, fmt.Errorf("token expired")
	}

	return token, nil
}

func (m *TokenModel) scanToken(row *sql.Row) (*Token, error) {
	token := &Token{}
	var expiresAt, lastUsedAt sql.NullTime

	err := row.Scan(&token.ID, &token.OwnerID, &token.Name, &token.TokenHash,
		&token.TokenPrefix, &expiresAt, &lastUsedAt, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}
	return token, nil
}

// UpdateLastUsed stamps the token; called async from the auth middleware
func (m *TokenModel) UpdateLastUsed(id int64) error {
	_, err := m.DB.Exec(`UPDATE tokens SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// ListByOwner returns all tokens for an account
func (m *TokenModel) ListByOwner(ownerID int64) ([]*Token, error) {
	rows, err := m.DB.Query(`
		SELECT id, owner_id, name, token_hash, token_prefix, expires_at, last_used_at, created_at
		FROM tokens WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		token := &Token{}
		var expiresAt, lastUsedAt sql.NullTime
		if err := rows.Scan(&token.ID, &token.OwnerID, &token.Name, &token.TokenHash,
			&token.TokenPrefix, &expiresAt, &lastUsedAt, &token.CreatedAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			token.ExpiresAt = &expiresAt.Time
		}
		if lastUsedAt.Valid {
			token.LastUsedAt = &lastUsedAt.Time
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Revoke deletes a token owned by the given account
func (m *TokenModel) Revoke(id, ownerID int64) error {
	result, err := m.DB.Exec(`DELETE FROM tokens WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
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

// DeleteExpired removes tokens past their expiry; run by the scheduler
func (m *TokenModel) DeleteExpired() (int64, error) {
	result, err := m.DB.Exec(`DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
