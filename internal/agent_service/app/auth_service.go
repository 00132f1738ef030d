package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/veripoint/identity-gateway/internal/agent_service/domain"
	"github.com/veripoint/identity-gateway/internal/agent_service/repository"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidWebhookURL  = errors.New("webhook URL must start with http:// or https://")
)

// AuthService handles agent registration, dashboard login and API-key
// credential management.
type AuthService struct {
	agentRepo   repository.AgentRepository
	db          database.Querier
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      *slog.Logger
}

func NewAuthService(
	agentRepo repository.AgentRepository,
	db database.Querier,
	jwtSecret string,
	tokenExpiry time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		agentRepo:   agentRepo,
		db:          db,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		logger:      logger.With("service", "auth"),
	}
}

// RegisterInput carries the fields collected at sign-up.
type RegisterInput struct {
	FirstName    string
	LastName     string
	BusinessName *string
	PhoneNumber  string
	Email        string
	Password     string
	WebsiteURL   *string
}

// Register creates a new agent with freshly minted API keys and a zero
// wallet balance.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Agent, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	publicKey, secretKey, err := generateAPIKeys()
	if err != nil {
		return nil, err
	}

	agent := &domain.Agent{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		BusinessName: in.BusinessName,
		PhoneNumber:  in.PhoneNumber,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		APIKeyPublic: publicKey,
		APIKeySecret: secretKey,
		WebsiteURL:   in.WebsiteURL,
	}

	created, err := s.agentRepo.Create(ctx, s.db, agent)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to create agent", "error", err, "email", agent.Email)
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.logger.InfoContext(ctx, "Agent registered", "agent_id", created.ID, "email", created.Email)
	return created, nil
}

// Login verifies the password and issues a signed dashboard access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (token string, agent *domain.Agent, err error) {
	agent, err = s.agentRepo.GetByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up agent: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	claims := jwt.RegisteredClaims{
		Subject:   agent.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(s.tokenExpiry)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, agent, nil
}

// ValidateAccessToken parses a dashboard token and returns the agent it
// identifies.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenString string) (*domain.Agent, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	agentID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	agent, err := s.agentRepo.GetByID(ctx, s.db, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	return agent, nil
}

// ValidateAPIKey resolves a bearer secret key to the owning agent.
func (s *AuthService) ValidateAPIKey(ctx context.Context, secretKey string) (*domain.Agent, error) {
	agent, err := s.agentRepo.GetByAPIKeySecret(ctx, s.db, secretKey)
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to resolve API key: %w", err)
	}
	return agent, nil
}

// RotateAPIKeys replaces both keys and returns the new pair.
func (s *AuthService) RotateAPIKeys(ctx context.Context, agentID uuid.UUID) (publicKey, secretKey string, err error) {
	publicKey, secretKey, err = generateAPIKeys()
	if err != nil {
		return "", "", err
	}
	if err := s.agentRepo.UpdateAPIKeys(ctx, s.db, agentID, publicKey, secretKey); err != nil {
		return "", "", fmt.Errorf("failed to rotate API keys: %w", err)
	}
	s.logger.InfoContext(ctx, "API keys rotated", "agent_id", agentID)
	return publicKey, secretKey, nil
}

// UpdateWebhookURL sets or clears the agent's webhook URL. An empty string
// clears it.
func (s *AuthService) UpdateWebhookURL(ctx context.Context, agentID uuid.UUID, webhookURL string) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return s.agentRepo.UpdateWebhookURL(ctx, s.db, agentID, nil)
	}
	if !strings.HasPrefix(webhookURL, "http://") && !strings.HasPrefix(webhookURL, "https://") {
		return ErrInvalidWebhookURL
	}
	return s.agentRepo.UpdateWebhookURL(ctx, s.db, agentID, &webhookURL)
}

func generateAPIKeys() (publicKey, secretKey string, err error) {
	pub := make([]byte, 12)
	sec := make([]byte, 24)
	if _, err := rand.Read(pub); err != nil {
		return "", "", fmt.Errorf("failed to generate public key: %w", err)
	}
	if _, err := rand.Read(sec); err != nil {
		return "", "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	return "pk_live_" + hex.EncodeToString(pub), "sk_live_" + hex.EncodeToString(sec), nil
}
