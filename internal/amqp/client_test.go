package amqp

import (
	"testing"
	"time"
)

func TestNewRecurrenceSyncMessage(t *testing.T) {
	msg := NewRecurrenceSyncMessage("u-42")

	if msg.UserID != "u-42" {
		t.Errorf("UserID = %q, want u-42", msg.UserID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestRecurrenceSyncMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &RecurrenceSyncMessage{
		UserID:    "u-42",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := RecurrenceSyncMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("RecurrenceSyncMessageFromJSON() error = %v", err)
	}

	if parsed.UserID != msg.UserID {
		t.Errorf("Parsed UserID = %q, want %q", parsed.UserID, msg.UserID)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestRecurrenceSyncMessage_InvalidJSON(t *testing.T) {
	if _, err := RecurrenceSyncMessageFromJSON([]byte(`{"user_id": 7`)); err == nil {
		t.Error("RecurrenceSyncMessageFromJSON() should fail with invalid JSON")
	}
}
