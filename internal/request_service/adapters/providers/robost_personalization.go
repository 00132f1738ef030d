package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// RobostPersonalizationProvider submits NIN personalization jobs to
// RobostTech and polls their outcome. Async like IPE clearance, but uses
// the api-key header scheme of the other Robost endpoints.
type RobostPersonalizationProvider struct {
	apiKey    string
	submitURL string
	statusURL string
	client    *http.Client
	logger    *slog.Logger
}

func NewRobostPersonalizationProvider(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *RobostPersonalizationProvider {
	return &RobostPersonalizationProvider{
		apiKey:    apiKey,
		submitURL: baseURL + "/personalization",
		statusURL: baseURL + "/personalization_status",
		client:    newHTTPClient(timeout),
		logger:    logger.With("provider", "robost-personalization"),
	}
}

func (p *RobostPersonalizationProvider) GetName() string { return "robost-personalization" }

type robostAsyncResponse struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *RobostPersonalizationProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	if p.apiKey == "" {
		p.logger.ErrorContext(ctx, "RobostTech API key is not configured")
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.submitURL,
		map[string]string{"api-key": p.apiKey},
		map[string]string{"tracking_id": input.TrackingID})
	if timedOut {
		p.logger.WarnContext(ctx, "RobostTech personalization submission timed out")
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "RobostTech personalization submission failed", "error", err)
		return &Result{Success: false, Message: "Submission failed"}, nil
	}

	var apiRes robostAsyncResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	if apiRes.Success {
		return &Result{Success: true, Message: "Submitted successfully"}, nil
	}
	msg := apiRes.Message
	if msg == "" {
		msg = "Provider rejected request"
	}
	return &Result{Success: false, Message: msg}, nil
}

func (p *RobostPersonalizationProvider) CheckStatus(ctx context.Context, trackingID string) (*Result, error) {
	if p.apiKey == "" {
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.statusURL,
		map[string]string{"api-key": p.apiKey},
		map[string]string{"tracking_id": trackingID})
	if timedOut {
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "RobostTech personalization status check failed", "error", err, "tracking_id", trackingID)
		return &Result{Success: false, Message: "Check failed"}, nil
	}

	var apiRes robostAsyncResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		return &Result{Success: false, Message: "Check failed"}, nil
	}

	if apiRes.Success && apiRes.Status == "completed" {
		return &Result{Success: true, Status: domain.StatusCompleted, Data: apiRes.Data}, nil
	}
	if !apiRes.Success || apiRes.Status == "failed" {
		return &Result{Success: true, Status: domain.StatusFailed, Message: apiRes.Message}, nil
	}
	return &Result{Success: true, Status: domain.StatusProcessing, Message: "Still pending"}, nil
}
