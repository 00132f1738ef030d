package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
	"github.com/veripoint/identity-gateway/internal/request_service/repository"
)

type pgWalletTransactionRepository struct{}

// NewPgWalletTransactionRepository creates a new WalletTransactionRepository for PostgreSQL.
func NewPgWalletTransactionRepository() repository.WalletTransactionRepository {
	return &pgWalletTransactionRepository{}
}

func (r *pgWalletTransactionRepository) Create(ctx context.Context, q database.Querier, tx *domain.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (id, agent_id, request_id, type, amount, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	_, err := q.Exec(ctx, query,
		tx.ID, tx.AgentID, tx.RequestID, tx.Type, tx.Amount, tx.BalanceAfter, tx.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

func (r *pgWalletTransactionRepository) ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, error) {
	query := `
		SELECT id, agent_id, request_id, type, amount, balance_after, description, created_at
		FROM wallet_transactions
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.Query(ctx, query, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.WalletTransaction
	for rows.Next() {
		var tx domain.WalletTransaction
		err := rows.Scan(&tx.ID, &tx.AgentID, &tx.RequestID, &tx.Type, &tx.Amount, &tx.BalanceAfter, &tx.Description, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction row: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
