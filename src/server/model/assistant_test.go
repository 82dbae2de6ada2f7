package models

import (
	"fmt"
	"testing"
)

func TestNotificationIdempotency(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	msgModel := &AssistantMessageModel{DB: db.DB}

	const key = "trial_day_3"

	inserted, err := msgModel.InsertNotification(artist.ID, key, "Day 3: have you started your first release?")
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !inserted {
		t.Error("first insert should report inserted")
	}

	// Retries with the same key are silent no-ops
	for i := 0; i < 3; i++ {
		inserted, err = msgModel.InsertNotification(artist.ID, key, "duplicate attempt")
		if err != nil {
			t.Fatalf("retry %d failed: %v", i, err)
		}
		if inserted {
			t.Errorf("retry %d reported inserted", i)
		}
	}

	var count int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM assistant_messages WHERE user_id = ? AND notification_key = ?
	`, artist.ID, key).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("found %d rows for key, want 1", count)
	}

	// Same key for another user is independent
	other := createTestArtist(t, db, "other@example.com")
	inserted, err = msgModel.InsertNotification(other.ID, key, "Day 3 nudge")
	if err != nil {
		t.Fatalf("other-user insert failed: %v", err)
	}
	if !inserted {
		t.Error("same key for a different user should insert")
	}
}

func TestThreadOrderingAndUnread(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	msgModel := &AssistantMessageModel{DB: db.DB}

	for i := 0; i < 3; i++ {
		if _, err := msgModel.Append(artist.ID, fmt.Sprintf("question %d", i), true, "release_help"); err != nil {
			t.Fatalf("append user turn failed: %v", err)
		}
		if _, err := msgModel.Append(artist.ID, fmt.Sprintf("answer %d", i), false, ""); err != nil {
			t.Fatalf("append assistant turn failed: %v", err)
		}
	}
	if _, err := msgModel.InsertNotification(artist.ID, "trial_day_1", "Welcome!"); err != nil {
		t.Fatalf("notification insert failed: %v", err)
	}

	history, err := msgModel.History(artist.ID, 50)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 7 {
		t.Fatalf("history length = %d, want 7", len(history))
	}
	if history[0].MessageText != "question 0" {
		t.Errorf("first message = %q, want oldest first", history[0].MessageText)
	}
	if history[6].MessageKind != MessageKindNotification {
		t.Errorf("last message kind = %s, want notification", history[6].MessageKind)
	}
	// ULIDs sort chronologically
	for i := 1; i < len(history); i++ {
		if history[i-1].ID >= history[i].ID {
			t.Errorf("message IDs out of order at %d: %s >= %s", i, history[i-1].ID, history[i].ID)
		}
	}

	// 3 assistant replies + 1 notification are unread
	unread, err := msgModel.UnreadCount(artist.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if unread != 4 {
		t.Errorf("unread = %d, want 4", unread)
	}

	if err := msgModel.MarkAllRead(artist.ID); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	unread, err = msgModel.UnreadCount(artist.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread after MarkAllRead = %d, want 0", unread)
	}
}
