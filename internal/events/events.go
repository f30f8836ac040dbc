package events

import "context"

// Stream every domain event is published to.
const Stream = "events:lnurl"

// Event types
const (
	EventInvoiceSettled      = "invoice_settled"
	EventWithdrawPaid        = "withdraw_paid"
	EventChannelStateChanged = "channel_state_changed"
	EventSessionCreated      = "session_created"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
