package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentConfig is a reusable payRequest target. Lightning Address configs carry a Username.
type PaymentConfig struct {
	ID              string    `json:"id"`
	MinSendableMsat int64     `json:"min_sendable_msat"`
	MaxSendableMsat int64     `json:"max_sendable_msat"`
	CommentAllowed  int       `json:"comment_allowed"`
	Description     string    `json:"description"`
	Username        *string   `json:"username,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// InvoiceRecord goes unpaid -> paid once and is never reverted.
type InvoiceRecord struct {
	ID             uuid.UUID  `json:"id"`
	PaymentID      string     `json:"payment_id"`
	AmountSat      int64      `json:"amount_sat"`
	PaymentHash    string     `json:"payment_hash"`
	PaymentRequest string     `json:"payment_request"`
	Description    string     `json:"description"`
	Comment        *string    `json:"comment,omitempty"`
	Paid           bool       `json:"paid"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}
