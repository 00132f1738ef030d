package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	agentdomain "github.com/veripoint/identity-gateway/internal/agent_service/domain"
	agentrepo "github.com/veripoint/identity-gateway/internal/agent_service/repository"
	catalogapp "github.com/veripoint/identity-gateway/internal/catalog_service/app"
	catalogdomain "github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/docrender"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/providers"
	"github.com/veripoint/identity-gateway/internal/request_service/domain"
	"github.com/veripoint/identity-gateway/internal/request_service/repository"
)

// ErrInsufficientFunds means the agent's wallet cannot cover the service
// price. Checked atomically with the debit, so concurrent submissions
// can never both pass against one balance.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

// EventPublisher is the slice of the message broker the engine needs.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ProviderSet wires concrete adapters to the roles the engine dispatches
// on. Async adapters are keyed by service type because each async service
// talks to a different upstream.
type ProviderSet struct {
	NINLookup   providers.Provider
	PhoneLookup providers.Provider
	VNINSlip    providers.Provider
	Async       map[string]providers.AsyncProvider
}

// SubmissionResult is what a submission returns to the HTTP layer.
// A FAILED status here is a provider-level rejection, not a caller error;
// Refunded says whether the debit was returned.
type SubmissionResult struct {
	RequestID uuid.UUID
	Status    domain.RequestStatus
	Data      json.RawMessage
	PDFBase64 string
	Message   string
	Refunded  bool
}

// Engine owns the request lifecycle: admission (atomic debit + PROCESSING
// row + ledger entry), provider dispatch by service kind, and terminal
// commits with refund where the service contract says so.
type Engine struct {
	agentRepo   agentrepo.AgentRepository
	requestRepo repository.RequestRepository
	walletRepo  repository.WalletTransactionRepository
	pricing     *catalogapp.PricingResolver
	providerSet ProviderSet
	renderer    docrender.Renderer
	txRunner    database.TxRunner
	db          database.Querier
	publisher   EventPublisher
	logger      *slog.Logger
}

func NewEngine(
	agentRepo agentrepo.AgentRepository,
	requestRepo repository.RequestRepository,
	walletRepo repository.WalletTransactionRepository,
	pricing *catalogapp.PricingResolver,
	providerSet ProviderSet,
	renderer docrender.Renderer,
	txRunner database.TxRunner,
	db database.Querier,
	publisher EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		agentRepo:   agentRepo,
		requestRepo: requestRepo,
		walletRepo:  walletRepo,
		pricing:     pricing,
		providerSet: providerSet,
		renderer:    renderer,
		txRunner:    txRunner,
		db:          db,
		publisher:   publisher,
		logger:      logger.With("component", "lifecycle_engine"),
	}
}

// Submit runs one billable request end to end.
//
// Precondition order is fixed: payload shape, then service resolution and
// availability, then funds. Each failure returns its own sentinel before
// any money moves. After the admission transaction commits, every path
// ends in a terminal commit or an intentional PROCESSING park; provider
// outcomes are reported in the result, not as errors.
func (e *Engine) Submit(ctx context.Context, agent *agentdomain.Agent, selector catalogapp.Selector, payload domain.Payload) (*SubmissionResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	svc, err := e.pricing.Resolve(ctx, selector)
	if err != nil {
		return nil, err
	}

	req, err := e.admit(ctx, agent, svc, payload)
	if err != nil {
		return nil, err
	}

	result, err := e.dispatch(ctx, agent, svc, req, payload)
	if err != nil {
		// The debit is committed; never let an internal error after this
		// point leak without an audit trail.
		e.logger.ErrorContext(ctx, "Dispatch failed after debit committed",
			"request_id", req.ID, "service_type", svc.Code, "error", err)
		return nil, fmt.Errorf("request %s accepted but dispatch failed: %w", req.ID, err)
	}
	submissionsProcessedCounter.WithLabelValues(svc.Code, outcomeLabel(result)).Inc()
	return result, nil
}

// admit performs the all-or-nothing admission: conditional wallet debit,
// PROCESSING request row with the price pinned, and the DEBIT ledger
// entry. Insufficient funds roll the whole transaction back.
func (e *Engine) admit(ctx context.Context, agent *agentdomain.Agent, svc *catalogdomain.Service, payload domain.Payload) (*domain.ServiceRequest, error) {
	requestData, err := domain.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	req := &domain.ServiceRequest{
		ID:          uuid.New(),
		AgentID:     agent.ID,
		ServiceType: svc.Code,
		Status:      domain.StatusProcessing,
		Cost:        svc.Price,
		RequestData: requestData,
	}
	if catalogdomain.KindOf(svc.Code) == catalogdomain.KindManual {
		note := "Awaiting manual processing"
		req.AdminNote = &note
	}

	err = e.txRunner.WithinTx(ctx, func(q database.Querier) error {
		balanceAfter, ok, err := e.agentRepo.Debit(ctx, q, agent.ID, svc.Price)
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}
		if !ok {
			return ErrInsufficientFunds
		}
		if err := e.requestRepo.Create(ctx, q, req); err != nil {
			return err
		}
		return e.walletRepo.Create(ctx, q, &domain.WalletTransaction{
			ID:           uuid.New(),
			AgentID:      agent.ID,
			RequestID:    &req.ID,
			Type:         domain.TransactionDebit,
			Amount:       svc.Price,
			BalanceAfter: balanceAfter,
			Description:  "Charge: " + svc.Name,
		})
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("admission failed for %s: %w", svc.Code, err)
	}

	e.logger.InfoContext(ctx, "Request admitted",
		"request_id", req.ID, "agent_id", agent.ID, "service_type", svc.Code, "cost", svc.Price)
	return req, nil
}

// dispatch runs the strategy for the service kind. A panic anywhere in
// provider handling is converted into a refunded failure so the debit
// can never be stranded by a crash.
func (e *Engine) dispatch(ctx context.Context, agent *agentdomain.Agent, svc *catalogdomain.Service, req *domain.ServiceRequest, payload domain.Payload) (result *SubmissionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Panic during request dispatch",
				"request_id", req.ID, "panic", r)
			result = e.failAndRefund(ctx, agent, req, "Internal processing error")
			err = nil
		}
	}()

	switch catalogdomain.KindOf(svc.Code) {
	case catalogdomain.KindSyncLookup:
		return e.runSyncLookup(ctx, agent, svc, req, payload)
	case catalogdomain.KindSyncDocument:
		return e.runSyncDocument(ctx, agent, svc, req, payload)
	case catalogdomain.KindAsync:
		return e.runAsyncSubmit(ctx, agent, svc, req, payload)
	default:
		// Manual services park in PROCESSING for the admin review queue.
		return &SubmissionResult{
			RequestID: req.ID,
			Status:    domain.StatusProcessing,
			Message:   "Request received and queued for processing",
		}, nil
	}
}

func (e *Engine) runSyncLookup(ctx context.Context, agent *agentdomain.Agent, svc *catalogdomain.Service, req *domain.ServiceRequest, payload domain.Payload) (*SubmissionResult, error) {
	var (
		provider providers.Provider
		input    providers.Input
	)
	switch p := payload.(type) {
	case domain.NINPayload:
		provider, input = e.providerSet.NINLookup, providers.Input{NIN: p.NIN}
	case domain.PhonePayload:
		provider, input = e.providerSet.PhoneLookup, providers.Input{Phone: p.Phone}
	default:
		return nil, fmt.Errorf("no lookup provider for payload of %s", svc.Code)
	}

	res := e.callProvider(ctx, provider, input)
	if !res.Success {
		return e.failAndRefund(ctx, agent, req, res.Message), nil
	}

	if committed := e.complete(ctx, agent, req, res.Data); !committed {
		return e.alreadyResolved(ctx, agent, req)
	}
	return &SubmissionResult{RequestID: req.ID, Status: domain.StatusCompleted, Data: res.Data}, nil
}

func (e *Engine) runSyncDocument(ctx context.Context, agent *agentdomain.Agent, svc *catalogdomain.Service, req *domain.ServiceRequest, payload domain.Payload) (*SubmissionResult, error) {
	// VNIN slips come back already rendered by the provider.
	if svc.Code == catalogdomain.TypeVNINSlip {
		nin, ok := payload.(domain.NINPayload)
		if !ok {
			return nil, fmt.Errorf("vnin slip requires a nin payload")
		}
		res := e.callProvider(ctx, e.providerSet.VNINSlip, providers.Input{NIN: nin.NIN})
		if !res.Success {
			return e.failAndRefund(ctx, agent, req, res.Message), nil
		}
		var slip struct {
			PDFBase64 string `json:"pdf_base64"`
		}
		if err := json.Unmarshal(res.Data, &slip); err != nil || slip.PDFBase64 == "" {
			return e.failAndRefund(ctx, agent, req, "Slip generation failed"), nil
		}
		return e.completeWithDocument(ctx, agent, req, slip.PDFBase64)
	}

	// Locally rendered slips: look the record up, then render.
	slipPayload, ok := payload.(domain.SlipPayload)
	if !ok {
		return nil, fmt.Errorf("slip service requires a slip payload")
	}
	var (
		provider providers.Provider
		input    providers.Input
	)
	if slipPayload.Method == "phone" {
		provider, input = e.providerSet.PhoneLookup, providers.Input{Phone: slipPayload.Value}
	} else {
		provider, input = e.providerSet.NINLookup, providers.Input{NIN: slipPayload.Value}
	}

	res := e.callProvider(ctx, provider, input)
	if !res.Success {
		return e.failAndRefund(ctx, agent, req, res.Message), nil
	}

	template := catalogdomain.SlipTemplateFor(svc.Code)
	pdf, err := e.renderer.Render(ctx, template, res.Data)
	if err != nil {
		// A render failure after a successful lookup still refunds: the
		// agent paid for a document and got none.
		e.logger.ErrorContext(ctx, "Document render failed",
			"request_id", req.ID, "template", template, "error", err)
		return e.failAndRefund(ctx, agent, req, "Document generation failed"), nil
	}
	return e.completeWithDocument(ctx, agent, req, pdf)
}

func (e *Engine) runAsyncSubmit(ctx context.Context, agent *agentdomain.Agent, svc *catalogdomain.Service, req *domain.ServiceRequest, payload domain.Payload) (*SubmissionResult, error) {
	tracking, ok := payload.(domain.TrackingPayload)
	if !ok {
		return nil, fmt.Errorf("async service %s requires a tracking payload", svc.Code)
	}
	provider, ok := e.providerSet.Async[svc.Code]
	if !ok {
		return nil, fmt.Errorf("no async provider registered for %s", svc.Code)
	}

	res := e.callProvider(ctx, provider, providers.Input{TrackingID: tracking.TrackingID})
	if !res.Success {
		return e.failAndRefund(ctx, agent, req, res.Message), nil
	}

	// Accepted: money stays committed, the sweeper resolves the outcome.
	msg := res.Message
	if msg == "" {
		msg = "Submitted successfully"
	}
	return &SubmissionResult{RequestID: req.ID, Status: domain.StatusProcessing, Message: msg}, nil
}

func (e *Engine) callProvider(ctx context.Context, provider providers.Provider, input providers.Input) *providers.Result {
	start := time.Now()
	res, err := provider.Submit(ctx, input)
	providerRequestDurationHist.WithLabelValues(provider.GetName()).Observe(time.Since(start).Seconds())
	if err != nil {
		e.logger.ErrorContext(ctx, "Provider call errored", "provider", provider.GetName(), "error", err)
		return &providers.Result{Success: false, Message: "Provider Error"}
	}
	return res
}

// complete commits a COMPLETED transition. Returns false if the row was
// already resolved by another actor.
func (e *Engine) complete(ctx context.Context, agent *agentdomain.Agent, req *domain.ServiceRequest, responseData json.RawMessage) bool {
	var transitioned bool
	err := e.txRunner.WithinTx(ctx, func(q database.Querier) error {
		var err error
		transitioned, err = e.requestRepo.TransitionFromProcessing(ctx, q, req.ID, domain.StatusCompleted, responseData, nil)
		return err
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to commit COMPLETED transition",
			"request_id", req.ID, "error", err)
		return false
	}
	if transitioned {
		e.notifyResolution(ctx, agent, req, domain.StatusCompleted)
	}
	return transitioned
}

func (e *Engine) completeWithDocument(ctx context.Context, agent *agentdomain.Agent, req *domain.ServiceRequest, pdfBase64 string) (*SubmissionResult, error) {
	responseData, err := json.Marshal(map[string]string{"pdf_base64": pdfBase64})
	if err != nil {
		return nil, fmt.Errorf("failed to encode document response: %w", err)
	}
	if committed := e.complete(ctx, agent, req, responseData); !committed {
		return e.alreadyResolved(ctx, agent, req)
	}
	return &SubmissionResult{RequestID: req.ID, Status: domain.StatusCompleted, PDFBase64: pdfBase64}, nil
}

// failAndRefund commits FAILED and returns the pinned cost to the wallet
// in one transaction. The conditional transition guards the refund: it
// only happens if this call is the one that resolved the row.
func (e *Engine) failAndRefund(ctx context.Context, agent *agentdomain.Agent, req *domain.ServiceRequest, message string) *SubmissionResult {
	responseData, _ := json.Marshal(map[string]string{"error": message})
	note := "Auto-refunded: " + message

	var transitioned bool
	err := e.txRunner.WithinTx(ctx, func(q database.Querier) error {
		var err error
		transitioned, err = e.requestRepo.TransitionFromProcessing(ctx, q, req.ID, domain.StatusFailed, responseData, &note)
		if err != nil || !transitioned {
			return err
		}
		balanceAfter, err := e.agentRepo.Credit(ctx, q, agent.ID, req.Cost)
		if err != nil {
			return fmt.Errorf("failed to credit refund: %w", err)
		}
		return e.walletRepo.Create(ctx, q, &domain.WalletTransaction{
			ID:           uuid.New(),
			AgentID:      agent.ID,
			RequestID:    &req.ID,
			Type:         domain.TransactionRefund,
			Amount:       req.Cost,
			BalanceAfter: balanceAfter,
			Description:  "Refund: " + req.ServiceType,
		})
	})
	if err != nil {
		// Debit stands and the row is still PROCESSING; it will surface in
		// the manual review queue rather than silently losing money.
		e.logger.ErrorContext(ctx, "Failed to commit refund",
			"request_id", req.ID, "agent_id", agent.ID, "error", err)
		return &SubmissionResult{RequestID: req.ID, Status: domain.StatusProcessing, Message: message}
	}

	if transitioned {
		refundsIssuedCounter.WithLabelValues(req.ServiceType).Inc()
		e.notifyResolution(ctx, agent, req, domain.StatusFailed)
		// The caller-visible message must state the refund itself, not
		// just carry a flag.
		message = message + ". You have been refunded."
	}
	return &SubmissionResult{RequestID: req.ID, Status: domain.StatusFailed, Message: message, Refunded: transitioned}
}

// alreadyResolved reloads a row that lost the transition race and reports
// its settled state.
func (e *Engine) alreadyResolved(ctx context.Context, agent *agentdomain.Agent, req *domain.ServiceRequest) (*SubmissionResult, error) {
	current, err := e.requestRepo.GetByIDForAgent(ctx, e.db, req.ID, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload resolved request %s: %w", req.ID, err)
	}
	return &SubmissionResult{RequestID: current.ID, Status: current.Status, Data: current.ResponseData}, nil
}

func (e *Engine) notifyResolution(ctx context.Context, agent *agentdomain.Agent, req *domain.ServiceRequest, status domain.RequestStatus) {
	if e.publisher == nil || agent.WebhookURL == nil || *agent.WebhookURL == "" {
		return
	}
	event := domain.ResolutionEvent{
		RequestID:   req.ID,
		AgentID:     agent.ID,
		ServiceType: req.ServiceType,
		Status:      status,
		WebhookURL:  *agent.WebhookURL,
		ResolvedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.publisher.Publish(ctx, domain.SubjectRequestResolved, data); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish resolution event",
			"request_id", req.ID, "error", err)
	}
}

func outcomeLabel(result *SubmissionResult) string {
	switch result.Status {
	case domain.StatusCompleted:
		return "completed"
	case domain.StatusFailed:
		return "failed"
	default:
		return "processing"
	}
}
