package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veripoint/identity-gateway/internal/agent_service/domain"
	"github.com/veripoint/identity-gateway/internal/agent_service/repository"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

const uniqueViolationCode = "23505"

type pgAgentRepository struct{}

// NewPgAgentRepository creates a new AgentRepository for PostgreSQL.
func NewPgAgentRepository() repository.AgentRepository {
	return &pgAgentRepository{}
}

const agentColumns = `id, first_name, last_name, business_name, phone_number, email, password_hash,
	       api_key_public, api_key_secret, wallet_balance, webhook_url, website_url, created_at, updated_at`

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.BusinessName, &a.PhoneNumber, &a.Email, &a.PasswordHash,
		&a.APIKeyPublic, &a.APIKeySecret, &a.WalletBalance, &a.WebhookURL, &a.WebsiteURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *pgAgentRepository) Create(ctx context.Context, q database.Querier, agent *domain.Agent) (*domain.Agent, error) {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	query := `
		INSERT INTO agents (id, first_name, last_name, business_name, phone_number, email, password_hash,
		                    api_key_public, api_key_secret, wallet_balance, webhook_url, website_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := q.Exec(ctx, query,
		agent.ID, agent.FirstName, agent.LastName, agent.BusinessName, agent.PhoneNumber, agent.Email,
		agent.PasswordHash, agent.APIKeyPublic, agent.APIKeySecret, agent.WalletBalance, agent.WebhookURL,
		agent.WebsiteURL, agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return agent, nil
}

func (r *pgAgentRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return scanAgent(q.QueryRow(ctx, query, id))
}

func (r *pgAgentRepository) GetByEmail(ctx context.Context, q database.Querier, email string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE email = $1`
	return scanAgent(q.QueryRow(ctx, query, email))
}

func (r *pgAgentRepository) GetByAPIKeySecret(ctx context.Context, q database.Querier, secret string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE api_key_secret = $1`
	return scanAgent(q.QueryRow(ctx, query, secret))
}

func (r *pgAgentRepository) UpdateAPIKeys(ctx context.Context, q database.Querier, id uuid.UUID, publicKey, secretKey string) error {
	query := `UPDATE agents SET api_key_public = $2, api_key_secret = $3, updated_at = now() WHERE id = $1`
	tag, err := q.Exec(ctx, query, id, publicKey, secretKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (r *pgAgentRepository) UpdateWebhookURL(ctx context.Context, q database.Querier, id uuid.UUID, webhookURL *string) error {
	query := `UPDATE agents SET webhook_url = $2, updated_at = now() WHERE id = $1`
	tag, err := q.Exec(ctx, query, id, webhookURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

// Debit relies on the conditional predicate rather than a read-then-write:
// two concurrent submissions racing against one balance cannot both pass.
func (r *pgAgentRepository) Debit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, bool, error) {
	query := `
		UPDATE agents
		SET wallet_balance = wallet_balance - $2, updated_at = now()
		WHERE id = $1 AND wallet_balance >= $2
		RETURNING wallet_balance
	`
	var balanceAfter float64
	err := q.QueryRow(ctx, query, id, amount).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balanceAfter, true, nil
}

func (r *pgAgentRepository) Credit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, error) {
	query := `
		UPDATE agents
		SET wallet_balance = wallet_balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING wallet_balance
	`
	var balanceAfter float64
	err := q.QueryRow(ctx, query, id, amount).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrAgentNotFound
		}
		return 0, err
	}
	return balanceAfter, nil
}
