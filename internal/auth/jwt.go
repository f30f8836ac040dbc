package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "lnurl-gateway"

type Claims struct {
	SessionID  uuid.UUID `json:"session_id"`
	LinkingKey string    `json:"linking_key"`
	Action     string    `json:"action"`
	jwt.RegisteredClaims
}

// GenerateJWT выдаёт токен для подтверждённой сессии.
// Токен живёт не дольше сессии: expiresAt берётся из auth_sessions.
func GenerateJWT(secret string, sessionID uuid.UUID, linkingKey, action string, expiresAt time.Time) (string, error) {
	now := time.Now()
	if !expiresAt.After(now) {
		return "", fmt.Errorf("session already expired")
	}

	claims := Claims{
		SessionID:  sessionID,
		LinkingKey: linkingKey,
		Action:     action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   linkingKey,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.SessionID == uuid.Nil {
		return nil, fmt.Errorf("token has no session")
	}
	return claims, nil
}
