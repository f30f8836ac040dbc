package models

import (
	"time"

	"github.com/google/uuid"
)

type AuthSession struct {
	ID         uuid.UUID `json:"id"`
	K1         string    `json:"k1"`
	LinkingKey string    `json:"linking_key"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *AuthSession) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
