package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names a ledger mutation.
type Kind string

const (
	KindAdded       Kind = "transaction.added"
	KindDeleted     Kind = "transaction.deleted"
	KindNoteUpdated Kind = "transaction.note_updated"
	KindCleared     Kind = "ledger.cleared"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAdded, KindDeleted, KindNoteUpdated, KindCleared:
		return true
	}
	return false
}

// LedgerEvent is a lightweight change notification.
// It carries only identifiers; consumers reload the ledger from storage.
type LedgerEvent struct {
	Kind          Kind      `json:"kind"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Count         int       `json:"count"` // ledger size after the change
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(kind Kind, transactionID string, count int, version int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:          kind,
		TransactionID: transactionID,
		Count:         count,
		Version:       version,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event and rejects unknown kinds.
func FromJSON(data []byte) (*LedgerEvent, error) {
	var evt LedgerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if !evt.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", evt.Kind)
	}
	return &evt, nil
}
