package amqp

import (
	"encoding/json"
	"time"
)

// RecurrenceSyncMessage asks the worker to re-export one user's active
// recurrences. It carries only the user ID; the worker loads the current
// state from the database.
type RecurrenceSyncMessage struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecurrenceSyncMessage creates a sync message for the given user.
func NewRecurrenceSyncMessage(userID string) *RecurrenceSyncMessage {
	return &RecurrenceSyncMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecurrenceSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurrenceSyncMessageFromJSON creates a message from JSON bytes
func RecurrenceSyncMessageFromJSON(data []byte) (*RecurrenceSyncMessage, error) {
	var msg RecurrenceSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
