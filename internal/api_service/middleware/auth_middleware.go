package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	agentapp "github.com/veripoint/identity-gateway/internal/agent_service/app"
	agentdomain "github.com/veripoint/identity-gateway/internal/agent_service/domain"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const AuthenticatedAgentContextKey = ContextKey("authenticatedAgent")

// AgentFromContext extracts the agent placed by APIKeyAuth or JWTAuth.
func AgentFromContext(ctx context.Context) (*agentdomain.Agent, bool) {
	agent, ok := ctx.Value(AuthenticatedAgentContextKey).(*agentdomain.Agent)
	return agent, ok
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// APIKeyAuth authenticates agent API calls by their secret key
// (Authorization: Bearer sk_live_...).
func APIKeyAuth(authService *agentapp.AuthService, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !strings.HasPrefix(token, "sk_live_") {
				logger.WarnContext(r.Context(), "Missing or malformed API key")
				unauthorized(w, "A valid API key is required")
				return
			}

			agent, err := authService.ValidateAPIKey(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "API key validation failed", "error", err)
				unauthorized(w, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), AuthenticatedAgentContextKey, agent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JWTAuth authenticates dashboard calls by access token.
func JWTAuth(authService *agentapp.AuthService, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Authorization header required")
				return
			}

			agent, err := authService.ValidateAccessToken(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "Access token validation failed", "error", err)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AuthenticatedAgentContextKey, agent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CronAuth guards the sweep trigger with the scheduler's shared secret.
func CronAuth(cronSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cronSecret)) != 1 {
				logger.WarnContext(r.Context(), "Cron trigger rejected: bad secret")
				unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"status":false,"error":"` + message + `"}`))
}
