package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
	"github.com/veripoint/identity-gateway/internal/request_service/repository"
)

// QueryService serves read paths: status polling by the agent API and
// the dashboard's request/transaction history.
type QueryService struct {
	requestRepo repository.RequestRepository
	walletRepo  repository.WalletTransactionRepository
	db          database.Querier
	logger      *slog.Logger
}

func NewQueryService(
	requestRepo repository.RequestRepository,
	walletRepo repository.WalletTransactionRepository,
	db database.Querier,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		requestRepo: requestRepo,
		walletRepo:  walletRepo,
		db:          db,
		logger:      logger.With("component", "request_query"),
	}
}

// FindRequest locates a request by id or client reference, scoped to the
// calling agent and to the service types the endpoint serves. A request
// that exists but belongs to another service family is reported as not
// found rather than leaking its existence.
func (s *QueryService) FindRequest(ctx context.Context, agentID uuid.UUID, requestID *uuid.UUID, reference string, serviceTypes []string) (*domain.ServiceRequest, error) {
	if requestID != nil {
		req, err := s.requestRepo.GetByIDForAgent(ctx, s.db, *requestID, agentID)
		if err != nil {
			return nil, err
		}
		for _, t := range serviceTypes {
			if req.ServiceType == t {
				return req, nil
			}
		}
		return nil, domain.ErrRequestNotFound
	}
	return s.requestRepo.FindByClientReference(ctx, s.db, agentID, reference, serviceTypes)
}

func (s *QueryService) ListRequests(ctx context.Context, agentID uuid.UUID, serviceType string, limit, offset int) ([]domain.ServiceRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.requestRepo.ListByAgent(ctx, s.db, agentID, serviceType, limit, offset)
}

func (s *QueryService) ListTransactions(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.walletRepo.ListByAgent(ctx, s.db, agentID, limit, offset)
}
