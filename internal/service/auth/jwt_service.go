package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// JWTService issues and validates the bearer tokens that identify API
// callers. The subscription tier travels in the token so enqueueing needs
// no account lookup.
type JWTService interface {
	// GenerateToken creates a signed access token for the user and tier.
	GenerateToken(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier) (string, error)

	// ValidateToken verifies the signature and time claims of tokenString
	// and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	UserID    uuid.UUID
	Tier      domain.SubscriptionTier
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
