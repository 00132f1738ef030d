package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/veripoint/identity-gateway/internal/agent_service/domain"
	"github.com/veripoint/identity-gateway/internal/api_service/middleware"
	httptransport "github.com/veripoint/identity-gateway/internal/api_service/transport/http"
	catalogapp "github.com/veripoint/identity-gateway/internal/catalog_service/app"
	catalogdomain "github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/providers"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestdomain "github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// Function-field stubs: each test overrides only the behavior it cares
// about, everything else defaults to a benign outcome.

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithinTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(nil)
}

type stubServiceRepo struct {
	byType map[string]*catalogdomain.Service
	byCode map[int]*catalogdomain.Service
}

func (s *stubServiceRepo) GetByType(ctx context.Context, q database.Querier, serviceType string) (*catalogdomain.Service, error) {
	if svc, ok := s.byType[serviceType]; ok {
		return svc, nil
	}
	return nil, catalogdomain.ErrServiceNotFound
}

func (s *stubServiceRepo) GetByCode(ctx context.Context, q database.Querier, code int) (*catalogdomain.Service, error) {
	if svc, ok := s.byCode[code]; ok {
		return svc, nil
	}
	return nil, catalogdomain.ErrServiceNotFound
}

func (s *stubServiceRepo) List(ctx context.Context, q database.Querier) ([]catalogdomain.Service, error) {
	return nil, nil
}

func (s *stubServiceRepo) Upsert(ctx context.Context, q database.Querier, svc *catalogdomain.Service) error {
	return nil
}

type stubAgentRepo struct {
	debitOK    bool
	debitCalls int
}

func (s *stubAgentRepo) Create(ctx context.Context, q database.Querier, agent *agentdomain.Agent) (*agentdomain.Agent, error) {
	return agent, nil
}

func (s *stubAgentRepo) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*agentdomain.Agent, error) {
	return nil, agentdomain.ErrAgentNotFound
}

func (s *stubAgentRepo) GetByEmail(ctx context.Context, q database.Querier, email string) (*agentdomain.Agent, error) {
	return nil, agentdomain.ErrAgentNotFound
}

func (s *stubAgentRepo) GetByAPIKeySecret(ctx context.Context, q database.Querier, secret string) (*agentdomain.Agent, error) {
	return nil, agentdomain.ErrAgentNotFound
}

func (s *stubAgentRepo) UpdateAPIKeys(ctx context.Context, q database.Querier, id uuid.UUID, publicKey, secretKey string) error {
	return nil
}

func (s *stubAgentRepo) UpdateWebhookURL(ctx context.Context, q database.Querier, id uuid.UUID, webhookURL *string) error {
	return nil
}

func (s *stubAgentRepo) Debit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, bool, error) {
	s.debitCalls++
	if !s.debitOK {
		return 0, false, nil
	}
	return 900, true, nil
}

func (s *stubAgentRepo) Credit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, error) {
	return 1000, nil
}

type stubRequestRepo struct {
	byID map[uuid.UUID]*requestdomain.ServiceRequest
}

func (s *stubRequestRepo) Create(ctx context.Context, q database.Querier, req *requestdomain.ServiceRequest) error {
	return nil
}

func (s *stubRequestRepo) GetByIDForAgent(ctx context.Context, q database.Querier, id, agentID uuid.UUID) (*requestdomain.ServiceRequest, error) {
	if req, ok := s.byID[id]; ok && req.AgentID == agentID {
		return req, nil
	}
	return nil, requestdomain.ErrRequestNotFound
}

func (s *stubRequestRepo) FindByClientReference(ctx context.Context, q database.Querier, agentID uuid.UUID, reference string, serviceTypes []string) (*requestdomain.ServiceRequest, error) {
	return nil, requestdomain.ErrRequestNotFound
}

func (s *stubRequestRepo) ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, serviceType string, limit, offset int) ([]requestdomain.ServiceRequest, error) {
	return nil, nil
}

func (s *stubRequestRepo) ListPendingAsync(ctx context.Context, q database.Querier, serviceTypes []string, limit int) ([]requestdomain.ServiceRequest, error) {
	return nil, nil
}

func (s *stubRequestRepo) TransitionFromProcessing(ctx context.Context, q database.Querier, id uuid.UUID, status requestdomain.RequestStatus, responseData []byte, note *string) (bool, error) {
	return true, nil
}

type stubWalletRepo struct{}

func (s *stubWalletRepo) Create(ctx context.Context, q database.Querier, tx *requestdomain.WalletTransaction) error {
	return nil
}

func (s *stubWalletRepo) ListByAgent(ctx context.Context, q database.Querier, agentID uuid.UUID, limit, offset int) ([]requestdomain.WalletTransaction, error) {
	return nil, nil
}

type stubProvider struct {
	result *providers.Result
	calls  int
}

func (p *stubProvider) Submit(ctx context.Context, input providers.Input) (*providers.Result, error) {
	p.calls++
	return p.result, nil
}

func (p *stubProvider) GetName() string { return "stub" }

// envelope covers both submission and status responses.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		RequestID   string          `json:"request_id"`
		ServiceType string          `json:"service_type"`
		Status      string          `json:"status"`
		Result      json.RawMessage `json:"result"`
		PDFBase64   string          `json:"pdf_base64"`
		Refunded    bool            `json:"refunded"`
		Error       string          `json:"error"`
	} `json:"data"`
}

type handlerFixture struct {
	router    chi.Router
	agent     *agentdomain.Agent
	agentRepo *stubAgentRepo
	provider  *stubProvider
}

func newHandlerFixture(t *testing.T, svcRepo *stubServiceRepo, reqRepo *stubRequestRepo) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	agentRepo := &stubAgentRepo{debitOK: true}
	provider := &stubProvider{result: &providers.Result{Success: true, Data: json.RawMessage(`{"first_name":"Ada"}`)}}

	pricing := catalogapp.NewPricingResolver(svcRepo, nil, logger)
	engine := requestapp.NewEngine(agentRepo, reqRepo, &stubWalletRepo{}, pricing,
		requestapp.ProviderSet{NINLookup: provider, PhoneLookup: provider, VNINSlip: provider},
		nil, &fakeTxRunner{}, nil, nil, logger)
	query := requestapp.NewQueryService(reqRepo, &stubWalletRepo{}, nil, logger)
	handler := httptransport.NewIdentityHandler(engine, query, logger)

	agent := &agentdomain.Agent{ID: uuid.New(), Email: "ada@example.com"}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.AuthenticatedAgentContextKey, agent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	handler.RegisterRoutes(router)

	return &handlerFixture{router: router, agent: agent, agentRepo: agentRepo, provider: provider}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func activeService(code string, price float64) *catalogdomain.Service {
	return &catalogdomain.Service{Code: code, Name: code, Price: price, IsActive: true}
}

func TestIdentityHandler_NINVerify(t *testing.T) {
	svcRepo := &stubServiceRepo{byType: map[string]*catalogdomain.Service{
		catalogdomain.TypeNINVerification: activeService(catalogdomain.TypeNINVerification, 100),
	}}

	t.Run("Success", func(t *testing.T) {
		f := newHandlerFixture(t, svcRepo, &stubRequestRepo{})

		rec, env := f.do(t, http.MethodPost, "/nin-verify", map[string]string{"nin": "12345678901"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Status)
		assert.Equal(t, string(requestdomain.StatusCompleted), env.Data.Status)
		assert.JSONEq(t, `{"first_name":"Ada"}`, string(env.Data.Result))
		assert.Equal(t, 1, f.provider.calls)
	})

	t.Run("ProviderRejectionIs400WithRefund", func(t *testing.T) {
		f := newHandlerFixture(t, svcRepo, &stubRequestRepo{})
		f.provider.result = &providers.Result{Success: false, Message: "No record found"}

		rec, env := f.do(t, http.MethodPost, "/nin-verify", map[string]string{"nin": "12345678901"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Status)
		assert.Equal(t, "No record found. You have been refunded.", env.Error)
		assert.True(t, env.Data.Refunded)
	})

	t.Run("InsufficientFundsIs402", func(t *testing.T) {
		f := newHandlerFixture(t, svcRepo, &stubRequestRepo{})
		f.agentRepo.debitOK = false

		rec, env := f.do(t, http.MethodPost, "/nin-verify", map[string]string{"nin": "12345678901"})

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.False(t, env.Status)
		assert.Equal(t, 0, f.provider.calls, "rejected submissions must never reach the provider")
	})

	t.Run("MalformedNINRejectedBeforeBilling", func(t *testing.T) {
		f := newHandlerFixture(t, svcRepo, &stubRequestRepo{})

		rec, env := f.do(t, http.MethodPost, "/nin-verify", map[string]string{"nin": "1234"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Status)
		assert.Equal(t, 0, f.agentRepo.debitCalls)
		assert.Equal(t, 0, f.provider.calls)
	})

	t.Run("InvalidJSONBody", func(t *testing.T) {
		f := newHandlerFixture(t, svcRepo, &stubRequestRepo{})

		req := httptest.NewRequest(http.MethodPost, "/nin-verify", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIdentityHandler_ServiceResolution(t *testing.T) {
	t.Run("InactiveServiceIs503", func(t *testing.T) {
		svc := activeService(catalogdomain.TypeNINVerification, 100)
		svc.IsActive = false
		f := newHandlerFixture(t, &stubServiceRepo{byType: map[string]*catalogdomain.Service{
			catalogdomain.TypeNINVerification: svc,
		}}, &stubRequestRepo{})

		rec, env := f.do(t, http.MethodPost, "/nin-verify", map[string]string{"nin": "12345678901"})

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, env.Status)
		assert.Equal(t, 0, f.agentRepo.debitCalls)
	})

	t.Run("CodeOutsideFamilyIs404", func(t *testing.T) {
		// 401 is a slip code; submitting it through the validation endpoint
		// must look identical to an unknown code.
		f := newHandlerFixture(t, &stubServiceRepo{byCode: map[int]*catalogdomain.Service{
			401: activeService(catalogdomain.TypeNINSlipPremium, 1000),
		}}, &stubRequestRepo{})

		rec, env := f.do(t, http.MethodPost, "/nin-validation",
			map[string]any{"nin": "12345678901", "service_code": 401})

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.False(t, env.Status)
	})

	t.Run("UnknownSlipPathIs404", func(t *testing.T) {
		f := newHandlerFixture(t, &stubServiceRepo{}, &stubRequestRepo{})

		rec, _ := f.do(t, http.MethodPost, "/slip/platinum/nin", map[string]string{"value": "12345678901"})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestIdentityHandler_ManualServiceParksProcessing(t *testing.T) {
	f := newHandlerFixture(t, &stubServiceRepo{byCode: map[int]*catalogdomain.Service{
		330: activeService(catalogdomain.TypeNINValidationUpdateRecord, 500),
	}}, &stubRequestRepo{})

	rec, env := f.do(t, http.MethodPost, "/nin-validation",
		map[string]any{"nin": "12345678901", "service_code": 330})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)
	assert.Equal(t, string(requestdomain.StatusProcessing), env.Data.Status)
	assert.Equal(t, 0, f.provider.calls)
	assert.Equal(t, 1, f.agentRepo.debitCalls, "manual services still charge up front")
}

func TestIdentityHandler_StatusEndpoint(t *testing.T) {
	t.Run("CompletedRowReturnsResult", func(t *testing.T) {
		reqRepo := &stubRequestRepo{byID: map[uuid.UUID]*requestdomain.ServiceRequest{}}
		f := newHandlerFixture(t, &stubServiceRepo{}, reqRepo)

		id := uuid.New()
		reqRepo.byID[id] = &requestdomain.ServiceRequest{
			ID:           id,
			AgentID:      f.agent.ID,
			ServiceType:  catalogdomain.TypeIPEClearance,
			Status:       requestdomain.StatusCompleted,
			ResponseData: json.RawMessage(`{"cleared":"yes"}`),
		}

		rec, env := f.do(t, http.MethodGet, "/ipe-clearance/status?request_id="+id.String(), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Status)
		assert.Equal(t, string(requestdomain.StatusCompleted), env.Data.Status)
		assert.JSONEq(t, `{"cleared":"yes"}`, string(env.Data.Result))
	})

	t.Run("FailedRowSurfacesStoredError", func(t *testing.T) {
		reqRepo := &stubRequestRepo{byID: map[uuid.UUID]*requestdomain.ServiceRequest{}}
		f := newHandlerFixture(t, &stubServiceRepo{}, reqRepo)

		id := uuid.New()
		reqRepo.byID[id] = &requestdomain.ServiceRequest{
			ID:           id,
			AgentID:      f.agent.ID,
			ServiceType:  catalogdomain.TypeIPEClearance,
			Status:       requestdomain.StatusFailed,
			ResponseData: json.RawMessage(`{"error":"Clearance Failed"}`),
		}

		rec, env := f.do(t, http.MethodGet, "/ipe-clearance/status?request_id="+id.String(), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Clearance Failed", env.Data.Error)
		assert.Empty(t, env.Data.Result)
	})

	t.Run("RowFromAnotherFamilyIsNotFound", func(t *testing.T) {
		reqRepo := &stubRequestRepo{byID: map[uuid.UUID]*requestdomain.ServiceRequest{}}
		f := newHandlerFixture(t, &stubServiceRepo{}, reqRepo)

		id := uuid.New()
		reqRepo.byID[id] = &requestdomain.ServiceRequest{
			ID:          id,
			AgentID:     f.agent.ID,
			ServiceType: catalogdomain.TypeNINModificationName,
			Status:      requestdomain.StatusProcessing,
		}

		rec, _ := f.do(t, http.MethodGet, "/ipe-clearance/status?request_id="+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MalformedRequestID", func(t *testing.T) {
		f := newHandlerFixture(t, &stubServiceRepo{}, &stubRequestRepo{})

		rec, _ := f.do(t, http.MethodGet, "/ipe-clearance/status?request_id=not-a-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingIdentifiers", func(t *testing.T) {
		f := newHandlerFixture(t, &stubServiceRepo{}, &stubRequestRepo{})

		rec, _ := f.do(t, http.MethodGet, "/ipe-clearance/status", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIdentityHandler_RequiresAuthenticatedAgent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pricing := catalogapp.NewPricingResolver(&stubServiceRepo{byType: map[string]*catalogdomain.Service{
		catalogdomain.TypeNINVerification: activeService(catalogdomain.TypeNINVerification, 100),
	}}, nil, logger)
	engine := requestapp.NewEngine(&stubAgentRepo{debitOK: true}, &stubRequestRepo{}, &stubWalletRepo{},
		pricing, requestapp.ProviderSet{}, nil, &fakeTxRunner{}, nil, nil, logger)
	query := requestapp.NewQueryService(&stubRequestRepo{}, &stubWalletRepo{}, nil, logger)
	handler := httptransport.NewIdentityHandler(engine, query, logger)

	// No auth middleware on this router.
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	body, _ := json.Marshal(map[string]string{"nin": "12345678901"})
	req := httptest.NewRequest(http.MethodPost, "/nin-verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
