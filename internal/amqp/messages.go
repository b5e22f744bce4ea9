package amqp

import (
	"encoding/json"
	"time"

	"budgettable/internal/core"

	"github.com/google/uuid"
)

// ChangeMessage is the envelope published for every table change. EventID
// lets consumers drop redeliveries.
type ChangeMessage struct {
	EventID   string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	Event     core.ChangeEvent `json:"event"`
}

// NewChangeMessage wraps an event with a fresh id and timestamp
func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	return &ChangeMessage{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Event:     ev,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
