package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

type pgServiceRepository struct{}

// NewPgServiceRepository creates a new ServiceRepository for PostgreSQL.
func NewPgServiceRepository() domain.ServiceRepository {
	return &pgServiceRepository{}
}

const serviceColumns = `id, code, service_code, name, description, price, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*domain.Service, error) {
	s := &domain.Service{}
	err := row.Scan(&s.ID, &s.Code, &s.ServiceCode, &s.Name, &s.Description, &s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrServiceNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *pgServiceRepository) GetByType(ctx context.Context, q database.Querier, serviceType string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE code = $1`
	return scanService(q.QueryRow(ctx, query, serviceType))
}

func (r *pgServiceRepository) GetByCode(ctx context.Context, q database.Querier, code int) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE service_code = $1`
	return scanService(q.QueryRow(ctx, query, code))
}

func (r *pgServiceRepository) List(ctx context.Context, q database.Querier) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY code`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Code, &s.ServiceCode, &s.Name, &s.Description, &s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *pgServiceRepository) Upsert(ctx context.Context, q database.Querier, svc *domain.Service) error {
	query := `
		INSERT INTO services (code, service_code, name, description, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (code) DO UPDATE
		SET service_code = EXCLUDED.service_code,
		    price = EXCLUDED.price,
		    updated_at = now()
	`
	_, err := q.Exec(ctx, query, svc.Code, svc.ServiceCode, svc.Name, svc.Description, svc.Price, svc.IsActive)
	return err
}
