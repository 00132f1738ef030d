package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	agentapp "github.com/veripoint/identity-gateway/internal/agent_service/app"
)

// AuthHandler serves registration and dashboard login.
type AuthHandler struct {
	authService *agentapp.AuthService
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewAuthHandler(authService *agentapp.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		logger:      logger.With("handler", "auth"),
	}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

type registerRequest struct {
	FirstName    string  `json:"first_name" validate:"required,max=100"`
	LastName     string  `json:"last_name" validate:"required,max=100"`
	BusinessName *string `json:"business_name,omitempty" validate:"omitempty,max=200"`
	PhoneNumber  string  `json:"phone_number" validate:"required,max=20"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	WebsiteURL   *string `json:"website_url,omitempty" validate:"omitempty,url"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	agent, err := h.authService.Register(r.Context(), agentapp.RegisterInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BusinessName: req.BusinessName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Password:     req.Password,
		WebsiteURL:   req.WebsiteURL,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	// The secret key is shown once, at registration and on rotation.
	respondJSON(w, http.StatusCreated, apiResponse{
		Status:  true,
		Message: "Account created",
		Data: map[string]any{
			"agent_id":       agent.ID.String(),
			"email":          agent.Email,
			"api_key_public": agent.APIKeyPublic,
			"api_key_secret": agent.APIKeySecret,
		},
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	token, agent, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, apiResponse{
		Status: true,
		Data: map[string]any{
			"access_token": token,
			"agent_id":     agent.ID.String(),
			"email":        agent.Email,
		},
	})
}
