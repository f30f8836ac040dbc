package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorTypeWallet = "wallet" // a linking key or an anonymous LNURL client
	ActorTypeSystem = "system" // reconciler, cleanup, channel opener
)

// Audit entity types
const (
	EntityChallenge      = "challenge"
	EntityInvoice        = "invoice"
	EntityChannelRequest = "channel_request"
	EntitySession        = "session"
	EntityPaymentConfig  = "payment_config"
)

type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	Actor      *string   `json:"actor,omitempty"` // linking key when known
	ActorType  string    `json:"actor_type"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"` // k1, uuid or payment id
	Meta       any       `json:"meta,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
