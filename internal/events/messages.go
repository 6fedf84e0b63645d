package events

import (
	"encoding/json"
	"time"
)

// Change kinds carried on the wire.
const (
	KindTransactionAdded   = "transaction.added"
	KindTransactionUpdated = "transaction.updated"
	KindTransactionDeleted = "transaction.deleted"
	KindGoalAdded          = "goal.added"
	KindGoalUpdated        = "goal.updated"
	KindGoalDeleted        = "goal.deleted"
	KindOnboardingSaved    = "onboarding.saved"
	KindDataImported       = "data.imported"
	KindDataCleared        = "data.cleared"
)

// DataChangedMessage notifies consumers that the stored aggregate changed.
// It carries only the change kind and entity ID, consumers fetch the
// current data themselves.
type DataChangedMessage struct {
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDataChangedMessage creates a change notification stamped with the current time.
func NewDataChangedMessage(kind, entityID string) *DataChangedMessage {
	return &DataChangedMessage{
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DataChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DataChangedMessageFromJSON creates a message from JSON bytes
func DataChangedMessageFromJSON(data []byte) (*DataChangedMessage, error) {
	var msg DataChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errEmptyKind
	}
	return &msg, nil
}
