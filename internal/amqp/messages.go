package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action tells the worker what happened to an invoice.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

var ErrInvalidEvent = errors.New("invalid invoice event")

// InvoiceEvent is a lightweight notification that an invoice changed.
// The worker loads the invoice itself; Number is carried so a deleted
// invoice can still be removed from the ledger.
type InvoiceEvent struct {
	ID        string    `json:"id"`
	InvoiceID int64     `json:"invoiceId"`
	Number    string    `json:"invoiceNumber"`
	Version   int64     `json:"version"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvoiceEvent creates an event with a fresh message id.
func NewInvoiceEvent(invoiceID int64, number string, version int64, action Action) *InvoiceEvent {
	return &InvoiceEvent{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Number:    number,
		Version:   version,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects events the worker cannot act on.
func (m *InvoiceEvent) Validate() error {
	if m.InvoiceID <= 0 {
		return fmt.Errorf("%w: missing invoice id", ErrInvalidEvent)
	}
	switch m.Action {
	case ActionUpsert:
	case ActionDelete:
		if m.Number == "" {
			return fmt.Errorf("%w: delete without invoice number", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, m.Action)
	}
	return nil
}

// InvoiceEventFromJSON decodes and validates a message body.
func InvoiceEventFromJSON(data []byte) (*InvoiceEvent, error) {
	var msg InvoiceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
