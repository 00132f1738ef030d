package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	agentapp "github.com/veripoint/identity-gateway/internal/agent_service/app"
	"github.com/veripoint/identity-gateway/internal/api_service/middleware"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestdomain "github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// AccountHandler serves the dashboard: profile, usage history and
// credential management. All routes run behind JWTAuth.
type AccountHandler struct {
	authService *agentapp.AuthService
	query       *requestapp.QueryService
	logger      *slog.Logger
}

func NewAccountHandler(authService *agentapp.AuthService, query *requestapp.QueryService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		authService: authService,
		query:       query,
		logger:      logger.With("handler", "account"),
	}
}

func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Get("/requests", h.handleListRequests)
	r.Get("/transactions", h.handleListTransactions)
	r.Get("/credentials", h.handleGetCredentials)
	r.Post("/credentials", h.handleRotateCredentials)
	r.Patch("/credentials", h.handleUpdateWebhook)
}

func (h *AccountHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status: true,
		Data: map[string]any{
			"agent_id":       agent.ID.String(),
			"first_name":     agent.FirstName,
			"last_name":      agent.LastName,
			"business_name":  agent.BusinessName,
			"email":          agent.Email,
			"phone_number":   agent.PhoneNumber,
			"website_url":    agent.WebsiteURL,
			"wallet_balance": agent.WalletBalance,
		},
	})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *AccountHandler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	limit, offset := pageParams(r)

	requests, err := h.query.ListRequests(r.Context(), agent.ID, r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	items := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		item := map[string]any{
			"request_id":   req.ID.String(),
			"service_type": req.ServiceType,
			"status":       string(req.Status),
			"cost":         req.Cost,
			"created_at":   req.CreatedAt,
			"updated_at":   req.UpdatedAt,
		}
		if req.Status == requestdomain.StatusFailed {
			var failure struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(req.ResponseData, &failure) == nil {
				item["error"] = failure.Error
			}
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, apiResponse{Status: true, Data: items})
}

func (h *AccountHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	limit, offset := pageParams(r)

	transactions, err := h.query.ListTransactions(r.Context(), agent.ID, limit, offset)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	items := make([]map[string]any, 0, len(transactions))
	for _, tx := range transactions {
		item := map[string]any{
			"transaction_id": tx.ID.String(),
			"type":           string(tx.Type),
			"amount":         tx.Amount,
			"balance_after":  tx.BalanceAfter,
			"description":    tx.Description,
			"created_at":     tx.CreatedAt,
		}
		if tx.RequestID != nil {
			item["request_id"] = tx.RequestID.String()
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, apiResponse{Status: true, Data: items})
}

func (h *AccountHandler) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	// The secret key is never readable after issuance; only its prefix is
	// echoed so the agent can tell which key is live.
	secretHint := agent.APIKeySecret
	if len(secretHint) > 12 {
		secretHint = secretHint[:12] + "..."
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status: true,
		Data: map[string]any{
			"api_key_public": agent.APIKeyPublic,
			"api_key_secret": secretHint,
			"webhook_url":    agent.WebhookURL,
		},
	})
}

func (h *AccountHandler) handleRotateCredentials(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	publicKey, secretKey, err := h.authService.RotateAPIKeys(r.Context(), agent.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status:  true,
		Message: "API keys rotated; the previous keys are no longer valid",
		Data: map[string]any{
			"api_key_public": publicKey,
			"api_key_secret": secretKey,
		},
	})
}

type webhookUpdateRequest struct {
	WebhookURL string `json:"webhook_url"`
}

func (h *AccountHandler) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req webhookUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.authService.UpdateWebhookURL(r.Context(), agent.ID, req.WebhookURL); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{Status: true, Message: "Webhook URL updated"})
}
