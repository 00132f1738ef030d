package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

// Selector identifies the service to price: either a canonical type, or a
// numeric code constrained to the family the calling endpoint serves.
type Selector struct {
	Type   string
	Code   int
	Family domain.Family
}

// ByType selects a service by its canonical type identifier.
func ByType(serviceType string) Selector {
	return Selector{Type: serviceType}
}

// ByCode selects a service by numeric code, constrained to a family.
func ByCode(code int, family domain.Family) Selector {
	return Selector{Code: code, Family: family}
}

// PricingResolver looks up the active price for a selector. It always
// reads current state so admin edits take effect on the next submission.
type PricingResolver struct {
	serviceRepo domain.ServiceRepository
	db          database.Querier
	logger      *slog.Logger
}

func NewPricingResolver(serviceRepo domain.ServiceRepository, db database.Querier, logger *slog.Logger) *PricingResolver {
	return &PricingResolver{
		serviceRepo: serviceRepo,
		db:          db,
		logger:      logger.With("service", "pricing"),
	}
}

// Resolve returns the current service row for the selector.
// Numeric-code resolution additionally verifies the resolved type belongs
// to the selector's family; a code that exists but points outside the
// family is rejected with ErrInvalidServiceCode. Inactive services are
// reported via ErrServiceInactive so the caller can answer 503.
func (p *PricingResolver) Resolve(ctx context.Context, selector Selector) (*domain.Service, error) {
	var (
		svc *domain.Service
		err error
	)

	if selector.Type != "" {
		svc, err = p.serviceRepo.GetByType(ctx, p.db, selector.Type)
		if err != nil {
			if errors.Is(err, domain.ErrServiceNotFound) {
				return nil, domain.ErrServiceNotFound
			}
			return nil, fmt.Errorf("failed to resolve service %q: %w", selector.Type, err)
		}
	} else {
		svc, err = p.serviceRepo.GetByCode(ctx, p.db, selector.Code)
		if err != nil {
			if errors.Is(err, domain.ErrServiceNotFound) {
				return nil, domain.ErrInvalidServiceCode
			}
			return nil, fmt.Errorf("failed to resolve service code %d: %w", selector.Code, err)
		}
		if !domain.InFamily(selector.Family, svc.Code) {
			p.logger.WarnContext(ctx, "Service code resolved outside expected family",
				"code", selector.Code, "resolved_type", svc.Code, "family", selector.Family)
			return nil, domain.ErrInvalidServiceCode
		}
	}

	if !svc.IsActive {
		return nil, domain.ErrServiceInactive
	}
	return svc, nil
}
