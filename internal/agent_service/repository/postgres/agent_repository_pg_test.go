package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veripoint/identity-gateway/internal/agent_service/domain"
)

func setupAgentRepoTest(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool
}

func TestPgAgentRepository_Debit(t *testing.T) {
	repo := NewPgAgentRepository()
	agentID := uuid.New()

	t.Run("SufficientBalance", func(t *testing.T) {
		mockPool := setupAgentRepoTest(t)
		mockPool.ExpectQuery(`UPDATE agents\s+SET wallet_balance = wallet_balance - \$2, updated_at = now\(\)\s+WHERE id = \$1 AND wallet_balance >= \$2\s+RETURNING wallet_balance`).
			WithArgs(agentID, 100.0).
			WillReturnRows(mockPool.NewRows([]string{"wallet_balance"}).AddRow(900.0))

		balanceAfter, ok, err := repo.Debit(context.Background(), mockPool, agentID, 100.0)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 900.0, balanceAfter)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		mockPool := setupAgentRepoTest(t)
		// The conditional predicate matches no row; that is not an error.
		mockPool.ExpectQuery(`UPDATE agents`).
			WithArgs(agentID, 5000.0).
			WillReturnRows(mockPool.NewRows([]string{"wallet_balance"}))

		_, ok, err := repo.Debit(context.Background(), mockPool, agentID, 5000.0)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		mockPool := setupAgentRepoTest(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery(`UPDATE agents`).
			WithArgs(agentID, 100.0).
			WillReturnError(dbErr)

		_, ok, err := repo.Debit(context.Background(), mockPool, agentID, 100.0)

		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestPgAgentRepository_Credit(t *testing.T) {
	repo := NewPgAgentRepository()
	agentID := uuid.New()

	t.Run("Refund", func(t *testing.T) {
		mockPool := setupAgentRepoTest(t)
		mockPool.ExpectQuery(`UPDATE agents\s+SET wallet_balance = wallet_balance \+ \$2, updated_at = now\(\)\s+WHERE id = \$1\s+RETURNING wallet_balance`).
			WithArgs(agentID, 100.0).
			WillReturnRows(mockPool.NewRows([]string{"wallet_balance"}).AddRow(1000.0))

		balanceAfter, err := repo.Credit(context.Background(), mockPool, agentID, 100.0)

		require.NoError(t, err)
		assert.Equal(t, 1000.0, balanceAfter)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownAgent", func(t *testing.T) {
		mockPool := setupAgentRepoTest(t)
		mockPool.ExpectQuery(`UPDATE agents`).
			WithArgs(agentID, 100.0).
			WillReturnRows(mockPool.NewRows([]string{"wallet_balance"}))

		_, err := repo.Credit(context.Background(), mockPool, agentID, 100.0)

		require.ErrorIs(t, err, domain.ErrAgentNotFound)
	})
}

func TestPgAgentRepository_Create_DuplicateEmail(t *testing.T) {
	repo := NewPgAgentRepository()
	mockPool := setupAgentRepoTest(t)

	mockPool.ExpectExec(`INSERT INTO agents`).
		WithArgs(pgxmock.AnyArg(), "Ada", "Obi", pgxmock.AnyArg(), "08012345678", "ada@example.com",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err := repo.Create(context.Background(), mockPool, &domain.Agent{
		FirstName:   "Ada",
		LastName:    "Obi",
		PhoneNumber: "08012345678",
		Email:       "ada@example.com",
	})

	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestPgAgentRepository_GetByAPIKeySecret_NotFound(t *testing.T) {
	repo := NewPgAgentRepository()
	mockPool := setupAgentRepoTest(t)

	mockPool.ExpectQuery(`SELECT .+ FROM agents WHERE api_key_secret = \$1`).
		WithArgs("sk_live_unknown").
		WillReturnRows(mockPool.NewRows([]string{
			"id", "first_name", "last_name", "business_name", "phone_number", "email", "password_hash",
			"api_key_public", "api_key_secret", "wallet_balance", "webhook_url", "website_url", "created_at", "updated_at",
		}))

	_, err := repo.GetByAPIKeySecret(context.Background(), mockPool, "sk_live_unknown")

	require.ErrorIs(t, err, domain.ErrAgentNotFound)
}
