package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veripoint/identity-gateway/internal/api_service/middleware"
	catalogapp "github.com/veripoint/identity-gateway/internal/catalog_service/app"
	catalogdomain "github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestdomain "github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// IdentityHandler serves the billable agent API: one POST per service
// plus status polling for the slow families.
type IdentityHandler struct {
	engine   *requestapp.Engine
	query    *requestapp.QueryService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewIdentityHandler(engine *requestapp.Engine, query *requestapp.QueryService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		engine:   engine,
		query:    query,
		validate: validator.New(),
		logger:   logger.With("handler", "identity"),
	}
}

// RegisterRoutes registers the agent API routes. The router is expected
// to run APIKeyAuth before these.
func (h *IdentityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/nin-verify", h.handleNINVerify)
	r.Post("/phone-verify", h.handlePhoneVerify)
	r.Post("/vnin-slip", h.handleVNINSlip)
	r.Post("/slip", h.handleSlipByCode)
	r.Post("/slip/{slipType}/{method}", h.handleSlipByPath)
	r.Post("/nin-validation", h.handleValidation)
	r.Post("/nin-modification", h.handleModification)
	r.Post("/nin-personalization", h.handlePersonalization)
	r.Post("/ipe-clearance", h.handleIPEClearance)
	r.Get("/ipe-clearance/status", h.statusHandler(catalogdomain.TypeIPEClearance))
	r.Get("/nin-validation/status", h.statusHandler(
		catalogdomain.TypeNINValidationNoRecord,
		catalogdomain.TypeNINValidationUpdateRecord,
		catalogdomain.TypeNINValidationVNIN,
	))
	r.Get("/nin-modification/status", h.statusHandler(
		catalogdomain.TypeNINModificationName,
		catalogdomain.TypeNINModificationPhone,
		catalogdomain.TypeNINModificationAddress,
	))
}

func (h *IdentityHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// submit runs the engine and translates the outcome. Provider rejections
// surface as 400 with the refund state; accepted work is 200.
func (h *IdentityHandler) submit(w http.ResponseWriter, r *http.Request, selector catalogapp.Selector, payload requestdomain.Payload) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.engine.Submit(r.Context(), agent, selector, payload)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	data := submissionData{
		RequestID: result.RequestID.String(),
		Status:    string(result.Status),
		Result:    result.Data,
		PDFBase64: result.PDFBase64,
		Refunded:  result.Refunded,
	}

	if result.Status == requestdomain.StatusFailed {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Status: false,
			Error:  result.Message,
			Data:   data,
		})
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status:  true,
		Message: result.Message,
		Data:    data,
	})
}

func (h *IdentityHandler) handleNINVerify(w http.ResponseWriter, r *http.Request) {
	var req ninRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(catalogdomain.TypeNINVerification),
		requestdomain.NINPayload{NIN: req.NIN, ClientReference: req.Reference})
}

func (h *IdentityHandler) handlePhoneVerify(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(catalogdomain.TypeNINSearchByPhone),
		requestdomain.PhonePayload{Phone: req.Phone, ClientReference: req.Reference})
}

func (h *IdentityHandler) handleVNINSlip(w http.ResponseWriter, r *http.Request) {
	var req ninRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(catalogdomain.TypeVNINSlip),
		requestdomain.NINPayload{NIN: req.NIN, ClientReference: req.Reference})
}

func (h *IdentityHandler) handleSlipByCode(w http.ResponseWriter, r *http.Request) {
	var req slipRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByCode(req.ServiceCode, catalogdomain.FamilySlip),
		requestdomain.SlipPayload{Value: req.NIN, Method: "nin", ClientReference: req.Reference})
}

var slipTypeByPath = map[string]string{
	"premium":  catalogdomain.TypeNINSlipPremium,
	"standard": catalogdomain.TypeNINSlipStandard,
	"regular":  catalogdomain.TypeNINSlipRegular,
}

func (h *IdentityHandler) handleSlipByPath(w http.ResponseWriter, r *http.Request) {
	serviceType, ok := slipTypeByPath[chi.URLParam(r, "slipType")]
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown slip type")
		return
	}
	method := chi.URLParam(r, "method")
	if method != "nin" && method != "phone" {
		respondError(w, http.StatusNotFound, "Unknown lookup method")
		return
	}

	var req slipByMethodRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(serviceType),
		requestdomain.SlipPayload{Value: req.Value, Method: method, ClientReference: req.Reference})
}

func (h *IdentityHandler) handleValidation(w http.ResponseWriter, r *http.Request) {
	var req validationRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByCode(req.ServiceCode, catalogdomain.FamilyValidation),
		requestdomain.ValidationPayload{NIN: req.NIN, ServiceCode: req.ServiceCode, ClientReference: req.Reference})
}

func (h *IdentityHandler) handleModification(w http.ResponseWriter, r *http.Request) {
	var req modificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByCode(req.ServiceCode, catalogdomain.FamilyModification),
		requestdomain.ModificationPayload{
			NIN:             req.NIN,
			ServiceCode:     req.ServiceCode,
			Data:            req.Data,
			ClientReference: req.Reference,
		})
}

func (h *IdentityHandler) handlePersonalization(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(catalogdomain.TypeNINPersonalization),
		requestdomain.TrackingPayload{TrackingID: req.TrackingID, ClientReference: req.Reference})
}

func (h *IdentityHandler) handleIPEClearance(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r,
		catalogapp.ByType(catalogdomain.TypeIPEClearance),
		requestdomain.TrackingPayload{TrackingID: req.TrackingID, ClientReference: req.Reference})
}

// statusHandler answers status polls scoped to the given service types,
// looked up by request_id or by the caller's reference.
func (h *IdentityHandler) statusHandler(serviceTypes ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, ok := middleware.AgentFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var requestID *uuid.UUID
		if raw := r.URL.Query().Get("request_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "request_id must be a UUID")
				return
			}
			requestID = &id
		}
		reference := r.URL.Query().Get("reference")
		if requestID == nil && reference == "" {
			respondError(w, http.StatusBadRequest, "request_id or reference is required")
			return
		}

		req, err := h.query.FindRequest(r.Context(), agent.ID, requestID, reference, serviceTypes)
		if err != nil {
			respondServiceError(w, r, h.logger, err)
			return
		}

		data := requestStatusData{
			RequestID:   req.ID.String(),
			ServiceType: req.ServiceType,
			Status:      string(req.Status),
			CreatedAt:   req.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
		}
		switch req.Status {
		case requestdomain.StatusCompleted:
			data.Result = req.ResponseData
		case requestdomain.StatusFailed:
			var failure struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(req.ResponseData, &failure); err == nil {
				data.Error = failure.Error
			}
		}
		respondJSON(w, http.StatusOK, apiResponse{Status: true, Data: data})
	}
}
