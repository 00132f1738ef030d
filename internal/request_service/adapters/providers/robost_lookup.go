package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// robostLookupResponse is the wire shape of RobostTech's lookup endpoints.
// The phone endpoint sometimes signals success via status instead of the
// boolean, so both are checked.
type robostLookupResponse struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// RobostNINProvider verifies a NIN against RobostTech. Auth is the
// api-key header.
type RobostNINProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewRobostNINProvider(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *RobostNINProvider {
	return &RobostNINProvider{
		apiKey:   apiKey,
		endpoint: baseURL + "/nin_verify",
		client:   newHTTPClient(timeout),
		logger:   logger.With("provider", "robost-nin"),
	}
}

func (p *RobostNINProvider) GetName() string { return "robost-nin" }

func (p *RobostNINProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	if p.apiKey == "" {
		p.logger.ErrorContext(ctx, "RobostTech API key is not configured")
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.endpoint,
		map[string]string{"api-key": p.apiKey},
		map[string]string{"nin": input.NIN})
	if timedOut {
		p.logger.WarnContext(ctx, "RobostTech NIN lookup timed out")
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "RobostTech NIN lookup failed", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	var apiRes robostLookupResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		p.logger.ErrorContext(ctx, "RobostTech NIN response is not valid JSON", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	if apiRes.Success && len(apiRes.Data) > 0 {
		return &Result{Success: true, Data: apiRes.Data}, nil
	}
	msg := apiRes.Message
	if msg == "" {
		msg = "Verification failed"
	}
	return &Result{Success: false, Message: msg}, nil
}

// RobostPhoneProvider searches identity records by phone number via
// RobostTech. Same auth scheme as the NIN lookup.
type RobostPhoneProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewRobostPhoneProvider(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *RobostPhoneProvider {
	return &RobostPhoneProvider{
		apiKey:   apiKey,
		endpoint: baseURL + "/nin_phone",
		client:   newHTTPClient(timeout),
		logger:   logger.With("provider", "robost-phone"),
	}
}

func (p *RobostPhoneProvider) GetName() string { return "robost-phone" }

func (p *RobostPhoneProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	if p.apiKey == "" {
		p.logger.ErrorContext(ctx, "RobostTech API key is not configured")
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.endpoint,
		map[string]string{"api-key": p.apiKey},
		map[string]string{"phone": input.Phone})
	if timedOut {
		p.logger.WarnContext(ctx, "RobostTech phone lookup timed out")
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "RobostTech phone lookup failed", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	var apiRes robostLookupResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		p.logger.ErrorContext(ctx, "RobostTech phone response is not valid JSON", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	if (apiRes.Success || apiRes.Status == "success") && len(apiRes.Data) > 0 {
		return &Result{Success: true, Data: apiRes.Data}, nil
	}
	msg := apiRes.Message
	if msg == "" {
		msg = "Verification failed at provider"
	}
	return &Result{Success: false, Message: msg}, nil
}
