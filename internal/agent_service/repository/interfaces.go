package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/veripoint/identity-gateway/internal/agent_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

// AgentRepository defines persistence for agents. Methods that participate
// in the engine's transactions accept a database.Querier so they run on the
// pool or inside a pgx.Tx.
type AgentRepository interface {
	Create(ctx context.Context, q database.Querier, agent *domain.Agent) (*domain.Agent, error)
	GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Agent, error)
	GetByEmail(ctx context.Context, q database.Querier, email string) (*domain.Agent, error)
	GetByAPIKeySecret(ctx context.Context, q database.Querier, secret string) (*domain.Agent, error)

	UpdateAPIKeys(ctx context.Context, q database.Querier, id uuid.UUID, publicKey, secretKey string) error
	UpdateWebhookURL(ctx context.Context, q database.Querier, id uuid.UUID, webhookURL *string) error

	// Debit atomically decrements the wallet balance iff it covers the
	// amount, returning the balance after the debit. When the balance does
	// not cover the amount, ok is false and err is nil.
	Debit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (balanceAfter float64, ok bool, err error)

	// Credit atomically increments the wallet balance (refunds), returning
	// the balance after the credit.
	Credit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (balanceAfter float64, err error)
}
