package models

import "time"

// Challenge kinds
const (
	ChallengeKindWithdraw = "withdraw"
	ChallengeKindChannel  = "channel"
	ChallengeKindAuth     = "auth"
)

// Challenge states
const (
	ChallengeStateUnused    = "unused"
	ChallengeStateUsed      = "used"
	ChallengeStateCancelled = "cancelled"
)

// Auth actions (LUD-04)
const (
	AuthActionRegister = "register"
	AuthActionLogin    = "login"
	AuthActionLink     = "link"
	AuthActionAuth     = "auth"
)

var AllAuthActions = []string{AuthActionRegister, AuthActionLogin, AuthActionLink, AuthActionAuth}

func IsValidAuthAction(action string) bool {
	for _, a := range AllAuthActions {
		if a == action {
			return true
		}
	}
	return false
}

// Challenge is a single-use k1 nonce. Which payload fields are set depends on Kind:
// withdraw carries the bounds (and, once redeemed, the paid amount and invoice),
// auth carries Action and ExpiresAt, channel carries nothing.
type Challenge struct {
	K1         string     `json:"k1"`
	Kind       string     `json:"kind"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`

	MinWithdrawableMsat int64  `json:"min_withdrawable_msat,omitempty"`
	MaxWithdrawableMsat int64  `json:"max_withdrawable_msat,omitempty"`
	Description         string `json:"description,omitempty"`
	Action              string `json:"action,omitempty"`

	AmountSat      *int64  `json:"amount_sat,omitempty"`
	PaymentRequest *string `json:"payment_request,omitempty"`
}

// Expired reports whether the challenge has an expiry that is not after now.
func (c *Challenge) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
