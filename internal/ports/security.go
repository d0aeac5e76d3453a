package ports

import (
	"time"

	"github.com/google/uuid"
)

// AuthClaims is the platform identity carried by bearer tokens. Tokens are
// issued by the external authentication service; this service only verifies.
type AuthClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

// TokenVerifier validates platform bearer tokens on mutating routes.
type TokenVerifier interface {
	ParseAndValidate(token string) (AuthClaims, error)
}
