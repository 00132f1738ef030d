package domain

import (
	"context"

	"github.com/veripoint/identity-gateway/internal/platform/database"
)

// ServiceRepository reads and seeds the price list. Every lookup hits the
// table directly: admin price/availability edits must be visible on the
// very next submission, so nothing here is cached.
type ServiceRepository interface {
	GetByType(ctx context.Context, q database.Querier, serviceType string) (*Service, error)
	GetByCode(ctx context.Context, q database.Querier, code int) (*Service, error)
	List(ctx context.Context, q database.Querier) ([]Service, error)
	Upsert(ctx context.Context, q database.Querier, svc *Service) error
}
