package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// RequestRepository persists service requests. Every method takes a
// Querier so calls compose into the engine's transactions.
type RequestRepository interface {
	Create(ctx context.Context, q database.Querier, req *domain.ServiceRequest) error
	GetByIDForAgent(ctx context.Context, q database.Querier, id, agentID uuid.UUID) (*domain.ServiceRequest, error)
	// FindByClientReference matches the client_reference stored inside
	// request_data, scoped to one agent and one set of service types.
	FindByClientReference(ctx context.Context, q database.Querier, agentID uuid.UUID, reference string, serviceTypes []string) (*domain.ServiceRequest, error)
	ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, serviceType string, limit, offset int) ([]domain.ServiceRequest, error)
	// ListPendingAsync returns PROCESSING rows of the given service types,
	// oldest first, capped at limit. The sweeper's work queue.
	ListPendingAsync(ctx context.Context, q database.Querier, serviceTypes []string, limit int) ([]domain.ServiceRequest, error)
	// TransitionFromProcessing moves a request to a terminal status only if
	// it is still PROCESSING, writing response data and an optional note.
	// Returns false when another actor already resolved the row.
	TransitionFromProcessing(ctx context.Context, q database.Querier, id uuid.UUID, status domain.RequestStatus, responseData []byte, note *string) (bool, error)
}

// WalletTransactionRepository appends and reads the immutable ledger.
type WalletTransactionRepository interface {
	Create(ctx context.Context, q database.Querier, tx *domain.WalletTransaction) error
	ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, error)
}
