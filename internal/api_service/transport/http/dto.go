package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	agentapp "github.com/veripoint/identity-gateway/internal/agent_service/app"
	agentdomain "github.com/veripoint/identity-gateway/internal/agent_service/domain"
	catalogdomain "github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestdomain "github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// apiResponse is the uniform JSON envelope of every endpoint.
type apiResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Submission DTOs. Validation tags cover transport-level shape; the
// domain payload types own the business rules (NIN length etc.), so the
// engine re-validates regardless of what the handler let through.

type ninRequest struct {
	NIN       string `json:"nin" validate:"required,len=11,numeric"`
	Reference string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type phoneRequest struct {
	Phone     string `json:"phone" validate:"required,len=11,numeric"`
	Reference string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type trackingRequest struct {
	TrackingID string `json:"trackingId" validate:"required,max=64"`
	Reference  string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type slipRequest struct {
	NIN         string `json:"nin" validate:"required,len=11,numeric"`
	ServiceCode int    `json:"service_code" validate:"required"`
	Reference   string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type slipByMethodRequest struct {
	Value     string `json:"value" validate:"required,max=11"`
	Reference string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type validationRequest struct {
	NIN         string `json:"nin" validate:"required,len=11,numeric"`
	ServiceCode int    `json:"service_code" validate:"required"`
	Reference   string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type modificationRequest struct {
	NIN         string                         `json:"nin" validate:"required,len=11,numeric"`
	ServiceCode int                            `json:"service_code" validate:"required"`
	Data        requestdomain.ModificationData `json:"data" validate:"required"`
	Reference   string                         `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type submissionData struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	PDFBase64 string          `json:"pdf_base64,omitempty"`
	Refunded  bool            `json:"refunded,omitempty"`
}

type requestStatusData struct {
	RequestID   string          `json:"request_id"`
	ServiceType string          `json:"service_type"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func respondJSON(w http.ResponseWriter, statusCode int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, apiResponse{Status: false, Error: message})
}

// respondServiceError maps domain sentinels to HTTP status codes. Unknown
// errors become opaque 500s; the detail stays in the logs.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, requestdomain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalogdomain.ErrInvalidServiceCode):
		respondError(w, http.StatusNotFound, "Unknown or invalid service code")
	case errors.Is(err, catalogdomain.ErrServiceNotFound):
		respondError(w, http.StatusNotFound, "Service not found")
	case errors.Is(err, catalogdomain.ErrServiceInactive):
		respondError(w, http.StatusServiceUnavailable, "Service is temporarily unavailable")
	case errors.Is(err, requestapp.ErrInsufficientFunds):
		respondError(w, http.StatusPaymentRequired, "Insufficient wallet balance")
	case errors.Is(err, requestdomain.ErrRequestNotFound):
		respondError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, agentdomain.ErrAgentNotFound), errors.Is(err, agentapp.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, agentapp.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, agentdomain.ErrEmailTaken):
		respondError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, agentapp.ErrInvalidWebhookURL):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Unhandled service error", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
