package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

type MockServiceRepository struct {
	mock.Mock
}

func (m *MockServiceRepository) GetByType(ctx context.Context, q database.Querier, serviceType string) (*domain.Service, error) {
	args := m.Called(ctx, q, serviceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockServiceRepository) GetByCode(ctx context.Context, q database.Querier, code int) (*domain.Service, error) {
	args := m.Called(ctx, q, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockServiceRepository) List(ctx context.Context, q database.Querier) ([]domain.Service, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockServiceRepository) Upsert(ctx context.Context, q database.Querier, svc *domain.Service) error {
	return m.Called(ctx, q, svc).Error(0)
}

func newResolver(repo domain.ServiceRepository) *PricingResolver {
	return NewPricingResolver(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolve_ByTypeReturnsCurrentRow(t *testing.T) {
	repo := new(MockServiceRepository)
	svc := &domain.Service{Code: domain.TypeNINVerification, Price: 100, IsActive: true}
	repo.On("GetByType", mock.Anything, mock.Anything, domain.TypeNINVerification).Return(svc, nil)

	got, err := newResolver(repo).Resolve(context.Background(), ByType(domain.TypeNINVerification))

	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price)
}

func TestResolve_UnknownType(t *testing.T) {
	repo := new(MockServiceRepository)
	repo.On("GetByType", mock.Anything, mock.Anything, "NOPE").Return(nil, domain.ErrServiceNotFound)

	_, err := newResolver(repo).Resolve(context.Background(), ByType("NOPE"))

	require.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestResolve_UnknownCode(t *testing.T) {
	repo := new(MockServiceRepository)
	repo.On("GetByCode", mock.Anything, mock.Anything, 999).Return(nil, domain.ErrServiceNotFound)

	_, err := newResolver(repo).Resolve(context.Background(), ByCode(999, domain.FamilyValidation))

	require.ErrorIs(t, err, domain.ErrInvalidServiceCode)
}

// A code that exists but resolves outside the requesting family must be
// indistinguishable from an unknown code.
func TestResolve_CodeOutsideFamilyRejected(t *testing.T) {
	repo := new(MockServiceRepository)
	modSvc := &domain.Service{Code: domain.TypeNINModificationName, Price: 15000, IsActive: true}
	repo.On("GetByCode", mock.Anything, mock.Anything, 501).Return(modSvc, nil)

	_, err := newResolver(repo).Resolve(context.Background(), ByCode(501, domain.FamilyValidation))

	require.ErrorIs(t, err, domain.ErrInvalidServiceCode)
}

func TestResolve_CodeInsideFamilyAccepted(t *testing.T) {
	repo := new(MockServiceRepository)
	svc := &domain.Service{Code: domain.TypeNINValidationVNIN, Price: 450, IsActive: true}
	repo.On("GetByCode", mock.Anything, mock.Anything, 331).Return(svc, nil)

	got, err := newResolver(repo).Resolve(context.Background(), ByCode(331, domain.FamilyValidation))

	require.NoError(t, err)
	assert.Equal(t, domain.TypeNINValidationVNIN, got.Code)
}

func TestResolve_InactiveService(t *testing.T) {
	repo := new(MockServiceRepository)
	svc := &domain.Service{Code: domain.TypeNINVerification, Price: 100, IsActive: false}
	repo.On("GetByType", mock.Anything, mock.Anything, domain.TypeNINVerification).Return(svc, nil)

	_, err := newResolver(repo).Resolve(context.Background(), ByType(domain.TypeNINVerification))

	require.ErrorIs(t, err, domain.ErrServiceInactive)
}
