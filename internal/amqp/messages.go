package amqp

import (
	"encoding/json"
	"time"

	"splitroom/internal/store"
)

// RoomChangeMessage tells peer instances that one feed of a room changed.
// It carries no record data: receivers re-read the shared backend and
// broadcast fresh snapshots, so a lost message costs freshness, never
// correctness.
type RoomChangeMessage struct {
	Origin    string     `json:"origin"`
	RoomID    string     `json:"room_id"`
	Feed      store.Feed `json:"feed"`
	Revision  uint64     `json:"revision"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewRoomChangeMessage creates a change notification stamped with the
// publishing instance's identity.
func NewRoomChangeMessage(origin, roomID string, feed store.Feed, revision uint64) *RoomChangeMessage {
	return &RoomChangeMessage{
		Origin:    origin,
		RoomID:    roomID,
		Feed:      feed,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RoomChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RoomChangeMessageFromJSON creates a message from JSON bytes
func RoomChangeMessageFromJSON(data []byte) (*RoomChangeMessage, error) {
	var msg RoomChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
