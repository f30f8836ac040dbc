package dto

import "time"

// API envelopes. LNURL endpoints answer with the LNURL shapes instead.

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PayConfigResponse struct {
	ID              string    `json:"id"`
	LNURL           string    `json:"lnurl"`
	QR              string    `json:"qr"`
	URL             string    `json:"url"`
	MinSendableMsat int64     `json:"min_sendable_msat"`
	MaxSendableMsat int64     `json:"max_sendable_msat"`
	CommentAllowed  int       `json:"comment_allowed"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

type MeResponse struct {
	SessionID  string    `json:"session_id"`
	LinkingKey string    `json:"linking_key"`
	Action     string    `json:"action"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type AddressResponse struct {
	Address string `json:"address"`
}
