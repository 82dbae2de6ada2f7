package models

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message kinds stored in assistant_messages
const (
	MessageKindChat         = "chat"
	MessageKindNotification = "notification"
)

// AssistantMessage is one entry in a user's assistant thread. Lifecycle
// notifications share the thread with chat turns so nudges appear inline.
type AssistantMessage struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	MessageText     string    `json:"message_text"`
	IsUserMessage   bool      `json:"is_user_message"`
	Intent          string    `json:"intent,omitempty"`
	MessageKind     string    `json:"message_kind"`
	NotificationKey string    `json:"notification_key,omitempty"`
	IsUnread        bool      `json:"is_unread"`
	CreatedAt       time.Time `json:"created_at"`
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID; lexical order matches creation order even
// within the same millisecond
func NewMessageID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// AssistantMessageModel handles assistant thread database operations
type AssistantMessageModel struct {
	DB *sql.DB
}

// Append stores a chat turn. Assistant replies start unread; the user's own
// messages never do. Intent carries the topic classification for later
// aggregation.
func (m *AssistantMessageModel) Append(userID int64, text string, isUserMessage bool, intent string) (*AssistantMessage, error) {
	msg := &AssistantMessage{
		ID:            NewMessageID(),
		UserID:        userID,
		MessageText:   text,
		IsUserMessage: isUserMessage,
		Intent:        intent,
		MessageKind:   MessageKindChat,
		IsUnread:      !isUserMessage,
		CreatedAt:     time.Now(),
	}
	_, err := m.DB.Exec(`
		INSERT INTO assistant_messages (id, user_id, message_text, is_user_message, intent, message_kind, is_unread, created_at)
		VALUES (?, ?, ?, ?, ?, 'chat', ?, CURRENT_TIMESTAMP)
	`, msg.ID, userID, text, isUserMessage, nullIfEmpty(intent), msg.IsUnread)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// InsertNotification writes a nudge exactly once per (user, key). The
// partial unique index on notification_key makes retries no-ops; the bool
// reports whether this call actually inserted.
func (m *AssistantMessageModel) InsertNotification(userID int64, key, text string) (bool, error) {
	result, err := m.DB.Exec(`
		INSERT INTO assistant_messages (id, user_id, message_text, is_user_message, message_kind, notification_key, is_unread, created_at)
		VALUES (?, ?, ?, 0, 'notification', ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT DO NOTHING
	`, NewMessageID(), userID, text, key)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// History returns a user's thread in chronological order, bounded by limit
func (m *AssistantMessageModel) History(userID int64, limit int) ([]*AssistantMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := m.DB.Query(`
		SELECT id, user_id, message_text, is_user_message, intent, message_kind, notification_key, is_unread, created_at
		FROM assistant_messages
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*AssistantMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks newest-first for the LIMIT; flip back to chronological
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UnreadCount returns the number of unread assistant-authored messages
func (m *AssistantMessageModel) UnreadCount(userID int64) (int, error) {
	var count int
	err := m.DB.QueryRow(`
		SELECT COUNT(*) FROM assistant_messages
		WHERE user_id = ? AND is_user_message = 0 AND is_unread = 1
	`, userID).Scan(&count)
	return count, err
}

// MarkAllRead clears the unread state for a user's thread
func (m *AssistantMessageModel) MarkAllRead(userID int64) error {
	_, err := m.DB.Exec(`
		UPDATE assistant_messages SET is_unread = 0 WHERE user_id = ? AND is_unread = 1
	`, userID)
	return err
}

// UserMessagesSince returns user-authored chat texts newer than the cutoff,
// feeding the topic analysis aggregation
func (m *AssistantMessageModel) UserMessagesSince(cutoff time.Time, tier Tier) ([]string, error) {
	rows, err := m.DB.Query(`
		SELECT am.message_text
		FROM assistant_messages am
		JOIN subscriptions s ON s.user_id = am.user_id
		WHERE am.is_user_message = 1 AND am.message_kind = 'chat'
		  AND am.created_at >= ? AND s.tier = ?
	`, cutoff, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

func scanMessage(rows *sql.Rows) (*AssistantMessage, error) {
	msg := &AssistantMessage{}
	var intent, key sql.NullString
	if err := rows.Scan(&msg.ID, &msg.UserID, &msg.MessageText, &msg.IsUserMessage,
		&intent, &msg.MessageKind, &key, &msg.IsUnread, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Intent = intent.String
	msg.NotificationKey = key.String
	return msg, nil
}
