package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	agentrepo "github.com/veripoint/identity-gateway/internal/agent_service/repository"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/providers"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
	"github.com/veripoint/identity-gateway/internal/request_service/repository"
)

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}

// Sweeper resolves PROCESSING requests of async services by polling the
// provider that accepted them. It never refunds: once an async provider
// accepts a submission the money is committed regardless of outcome.
// Overlapping sweeps are safe because transitions only fire on rows
// still PROCESSING at update time.
type Sweeper struct {
	agentRepo   agentrepo.AgentRepository
	requestRepo repository.RequestRepository
	checkers    map[string]providers.StatusChecker
	txRunner    database.TxRunner
	db          database.Querier
	publisher   EventPublisher
	batchSize   int
	logger      *slog.Logger
}

func NewSweeper(
	agentRepo agentrepo.AgentRepository,
	requestRepo repository.RequestRepository,
	checkers map[string]providers.StatusChecker,
	txRunner database.TxRunner,
	db database.Querier,
	publisher EventPublisher,
	batchSize int,
	logger *slog.Logger,
) *Sweeper {
	if batchSize <= 0 || batchSize > 20 {
		batchSize = 20
	}
	return &Sweeper{
		agentRepo:   agentRepo,
		requestRepo: requestRepo,
		checkers:    checkers,
		txRunner:    txRunner,
		db:          db,
		publisher:   publisher,
		batchSize:   batchSize,
		logger:      logger.With("component", "sweeper"),
	}
}

// Sweep examines one batch of pending async requests, oldest first.
// Rows whose provider reports a terminal outcome are transitioned; rows
// still in flight, and rows whose status poll failed, are left for the
// next pass.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	serviceTypes := make([]string, 0, len(s.checkers))
	for serviceType := range s.checkers {
		serviceTypes = append(serviceTypes, serviceType)
	}
	if len(serviceTypes) == 0 {
		return &SweepReport{}, nil
	}

	pending, err := s.requestRepo.ListPendingAsync(ctx, s.db, serviceTypes, s.batchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for i := range pending {
		req := &pending[i]
		report.Checked++
		sweepCheckedCounter.Inc()

		if s.resolve(ctx, req) {
			report.Updated++
		}
	}

	s.logger.InfoContext(ctx, "Sweep pass finished",
		"checked", report.Checked, "updated", report.Updated)
	return report, nil
}

// resolve polls one request and commits a terminal transition if the
// provider has an answer. Returns true when this pass settled the row.
func (s *Sweeper) resolve(ctx context.Context, req *domain.ServiceRequest) bool {
	checker, ok := s.checkers[req.ServiceType]
	if !ok {
		return false
	}
	trackingID, ok := domain.TrackingIDFrom(req.RequestData)
	if !ok {
		s.logger.WarnContext(ctx, "Pending async request has no tracking id",
			"request_id", req.ID, "service_type", req.ServiceType)
		return false
	}

	res, err := checker.CheckStatus(ctx, trackingID)
	if err != nil || !res.Success {
		// Poll failed (timeout included): skip this row, retry next pass.
		s.logger.WarnContext(ctx, "Status check failed, skipping row",
			"request_id", req.ID, "tracking_id", trackingID)
		return false
	}
	if !res.Status.IsTerminal() {
		return false
	}

	var responseData json.RawMessage
	if res.Status == domain.StatusCompleted {
		responseData = res.Data
	} else {
		responseData, _ = json.Marshal(map[string]string{"error": res.Message})
	}

	var transitioned bool
	err = s.txRunner.WithinTx(ctx, func(q database.Querier) error {
		var err error
		transitioned, err = s.requestRepo.TransitionFromProcessing(ctx, q, req.ID, res.Status, responseData, nil)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit sweep transition",
			"request_id", req.ID, "status", res.Status, "error", err)
		return false
	}
	if !transitioned {
		return false
	}

	sweepUpdatedCounter.WithLabelValues(string(res.Status)).Inc()
	s.logger.InfoContext(ctx, "Pending request resolved",
		"request_id", req.ID, "service_type", req.ServiceType, "status", res.Status)
	s.notify(ctx, req, res.Status)
	return true
}

func (s *Sweeper) notify(ctx context.Context, req *domain.ServiceRequest, status domain.RequestStatus) {
	if s.publisher == nil {
		return
	}
	agent, err := s.agentRepo.GetByID(ctx, s.db, req.AgentID)
	if err != nil || agent.WebhookURL == nil || *agent.WebhookURL == "" {
		return
	}
	event := domain.ResolutionEvent{
		RequestID:   req.ID,
		AgentID:     req.AgentID,
		ServiceType: req.ServiceType,
		Status:      status,
		WebhookURL:  *agent.WebhookURL,
		ResolvedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.SubjectRequestResolved, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish resolution event",
			"request_id", req.ID, "error", err)
	}
}

// AsyncCheckers builds the sweeper's checker map from the engine's
// provider set.
func AsyncCheckers(set ProviderSet) map[string]providers.StatusChecker {
	checkers := make(map[string]providers.StatusChecker, len(set.Async))
	for serviceType, provider := range set.Async {
		checkers[serviceType] = provider
	}
	return checkers
}
