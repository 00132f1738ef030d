package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// NinSlipIPEProvider handles IPE clearance through ninslip.com: an async
// submit plus a status poll keyed by tracking id. Auth is a bearer token.
type NinSlipIPEProvider struct {
	apiKey    string
	submitURL string
	statusURL string
	client    *http.Client
	logger    *slog.Logger
}

func NewNinSlipIPEProvider(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *NinSlipIPEProvider {
	base := strings.TrimRight(baseURL, "/")
	return &NinSlipIPEProvider{
		apiKey:    apiKey,
		submitURL: base + "/",
		statusURL: base + "/status.php",
		client:    newHTTPClient(timeout),
		logger:    logger.With("provider", "ninslip-ipe"),
	}
}

func (p *NinSlipIPEProvider) GetName() string { return "ninslip-ipe" }

type ninslipResponse struct {
	Status          string          `json:"status"`
	ClearanceStatus string          `json:"clearance_status"`
	Message         string          `json:"message"`
	Data            json.RawMessage `json:"data"`
}

func (p *NinSlipIPEProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	if p.apiKey == "" {
		p.logger.ErrorContext(ctx, "NinSlip API key is not configured")
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.submitURL,
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		map[string]string{"tracking_id": input.TrackingID})
	if timedOut {
		p.logger.WarnContext(ctx, "NinSlip IPE submission timed out")
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "NinSlip IPE submission failed", "error", err)
		return &Result{Success: false, Message: "Submission failed connection"}, nil
	}

	var apiRes ninslipResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		p.logger.ErrorContext(ctx, "NinSlip submit response is not valid JSON", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	if apiRes.Status == "success" {
		msg := apiRes.Message
		if msg == "" {
			msg = "Submitted successfully"
		}
		return &Result{Success: true, Message: msg, Data: json.RawMessage(body)}, nil
	}
	p.logger.WarnContext(ctx, "NinSlip rejected IPE submission", "message", apiRes.Message)
	msg := apiRes.Message
	if msg == "" {
		msg = "Provider rejected request"
	}
	return &Result{Success: false, Message: msg}, nil
}

// CheckStatus polls the clearance outcome. A reachable provider always
// yields Success=true with a Status; Success=false means the poll itself
// failed and the row should be retried on a later sweep.
func (p *NinSlipIPEProvider) CheckStatus(ctx context.Context, trackingID string) (*Result, error) {
	if p.apiKey == "" {
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.statusURL,
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		map[string]string{"tracking_id": trackingID})
	if timedOut {
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "NinSlip status check failed", "error", err, "tracking_id", trackingID)
		return &Result{Success: false, Message: "Status check failed"}, nil
	}

	var apiRes ninslipResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		return &Result{Success: false, Message: "Status check failed"}, nil
	}

	if apiRes.Status == "success" && apiRes.ClearanceStatus == "Successful" {
		return &Result{Success: true, Status: domain.StatusCompleted, Data: apiRes.Data}, nil
	}
	if apiRes.Status == "failed" || apiRes.ClearanceStatus == "Failed" || apiRes.ClearanceStatus == "Rejected" {
		msg := apiRes.Message
		if msg == "" {
			msg = "Clearance Failed"
		}
		return &Result{Success: true, Status: domain.StatusFailed, Message: msg}, nil
	}
	return &Result{Success: true, Status: domain.StatusProcessing, Message: "Waiting for provider"}, nil
}
