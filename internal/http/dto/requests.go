package dto

// GeneratePayRequest is the optional JSON body of POST /lnurl/pay. Omitted
// fields fall back to the configured defaults.
type GeneratePayRequest struct {
	MinSendableMsat *int64  `json:"min_sendable_msat,omitempty"`
	MaxSendableMsat *int64  `json:"max_sendable_msat,omitempty"`
	CommentAllowed  *int    `json:"comment_allowed,omitempty"`
	Description     *string `json:"description,omitempty"`
}
