package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel request states
const (
	ChannelStatePending   = "pending"
	ChannelStateCollected = "collected"
	ChannelStateCancelled = "cancelled"
	ChannelStateCompleted = "completed"
)

// Valid state transitions: from -> []to
var ValidChannelTransitions = map[string][]string{
	ChannelStatePending:   {ChannelStateCollected, ChannelStateCancelled},
	ChannelStateCollected: {ChannelStateCompleted, ChannelStateCancelled},
	ChannelStateCancelled: {},
	ChannelStateCompleted: {},
}

var channelStates = []string{ChannelStatePending, ChannelStateCollected, ChannelStateCancelled, ChannelStateCompleted}

func IsValidChannelTransition(from, to string) bool {
	allowed, ok := ValidChannelTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ChannelStatesInto lists the states a request may move to "to" from.
func ChannelStatesInto(to string) []string {
	var from []string
	for _, s := range channelStates {
		if IsValidChannelTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

type ChannelRequest struct {
	ID        uuid.UUID `json:"id"`
	K1        string    `json:"k1"`
	RemoteID  *string   `json:"remote_id,omitempty"` // 33-byte compressed pubkey, hex
	Private   bool      `json:"private"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
