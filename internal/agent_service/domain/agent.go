package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrEmailTaken    = errors.New("email already registered")
)

// Agent is a registered reseller account. The wallet balance is mutated
// only by the request lifecycle engine (debit at submission, credit on
// refund) and by the out-of-band funding process.
type Agent struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	BusinessName *string
	PhoneNumber  string
	Email        string
	PasswordHash string

	// APIKeyPublic identifies the agent; APIKeySecret is the bearer
	// credential presented on every /api/v1 call.
	APIKeyPublic string
	APIKeySecret string

	WalletBalance float64
	WebhookURL    *string
	WebsiteURL    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
