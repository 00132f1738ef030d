package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
	"github.com/veripoint/identity-gateway/internal/request_service/repository"
)

type pgRequestRepository struct{}

// NewPgRequestRepository creates a new RequestRepository for PostgreSQL.
func NewPgRequestRepository() repository.RequestRepository {
	return &pgRequestRepository{}
}

const requestColumns = `id, agent_id, service_type, status, cost, request_data, response_data, admin_note, created_at, updated_at`

func scanRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	req := &domain.ServiceRequest{}
	err := row.Scan(
		&req.ID, &req.AgentID, &req.ServiceType, &req.Status, &req.Cost,
		&req.RequestData, &req.ResponseData, &req.AdminNote,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan service request: %w", err)
	}
	return req, nil
}

func (r *pgRequestRepository) Create(ctx context.Context, q database.Querier, req *domain.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (id, agent_id, service_type, status, cost, request_data, response_data, admin_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`
	_, err := q.Exec(ctx, query,
		req.ID, req.AgentID, req.ServiceType, req.Status, req.Cost,
		req.RequestData, req.ResponseData, req.AdminNote,
	)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", err)
	}
	return nil
}

func (r *pgRequestRepository) GetByIDForAgent(ctx context.Context, q database.Querier, id, agentID uuid.UUID) (*domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1 AND agent_id = $2`
	return scanRequest(q.QueryRow(ctx, query, id, agentID))
}

func (r *pgRequestRepository) FindByClientReference(ctx context.Context, q database.Querier, agentID uuid.UUID, reference string, serviceTypes []string) (*domain.ServiceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests
		WHERE agent_id = $1
		  AND request_data->>'client_reference' = $2
		  AND service_type = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRequest(q.QueryRow(ctx, query, agentID, reference, serviceTypes))
}

func (r *pgRequestRepository) ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, serviceType string, limit, offset int) ([]domain.ServiceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests
		WHERE agent_id = $1 AND ($2 = '' OR service_type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := q.Query(ctx, query, agentID, serviceType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list service requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *pgRequestRepository) ListPendingAsync(ctx context.Context, q database.Querier, serviceTypes []string, limit int) ([]domain.ServiceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests
		WHERE status = $1 AND service_type = ANY($2)
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, domain.StatusProcessing, serviceTypes, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// TransitionFromProcessing is the only status writer. The WHERE clause
// makes terminal states sticky: once a row leaves PROCESSING no later
// update can touch it, so overlapping sweeps and engine commits are safe.
func (r *pgRequestRepository) TransitionFromProcessing(ctx context.Context, q database.Querier, id uuid.UUID, status domain.RequestStatus, responseData []byte, note *string) (bool, error) {
	query := `
		UPDATE service_requests
		SET status = $2,
		    response_data = COALESCE($3, response_data),
		    admin_note = COALESCE($4, admin_note),
		    updated_at = now()
		WHERE id = $1 AND status = $5
	`
	tag, err := q.Exec(ctx, query, id, status, responseData, note, domain.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to transition request %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func collectRequests(rows pgx.Rows) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	for rows.Next() {
		var req domain.ServiceRequest
		err := rows.Scan(
			&req.ID, &req.AgentID, &req.ServiceType, &req.Status, &req.Cost,
			&req.RequestData, &req.ResponseData, &req.AdminNote,
			&req.CreatedAt, &req.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service request row: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
