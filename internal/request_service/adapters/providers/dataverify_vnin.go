package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// DataVerifyVNINProvider generates VNIN slips through DataVerify. Unlike
// the other providers, DataVerify authenticates via an api_key field in
// the request body, and the slip PDF comes back rendered (base64) so no
// local document render step is needed.
type DataVerifyVNINProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewDataVerifyVNINProvider(apiKey, endpoint string, timeout time.Duration, logger *slog.Logger) *DataVerifyVNINProvider {
	return &DataVerifyVNINProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   newHTTPClient(timeout),
		logger:   logger.With("provider", "dataverify-vnin"),
	}
}

func (p *DataVerifyVNINProvider) GetName() string { return "dataverify-vnin" }

func (p *DataVerifyVNINProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	if p.apiKey == "" {
		p.logger.ErrorContext(ctx, "DataVerify API key is not configured")
		return &Result{Success: false, Message: msgConfigError}, nil
	}

	body, timedOut, err := postJSON(ctx, p.client, p.endpoint, nil, map[string]string{
		"api_key": p.apiKey,
		"nin":     input.NIN,
	})
	if timedOut {
		p.logger.WarnContext(ctx, "DataVerify slip generation timed out")
		return &Result{Success: false, Message: msgTimedOut}, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "DataVerify slip generation failed", "error", err)
		return &Result{Success: false, Message: "Provider connection failed"}, nil
	}

	var apiRes struct {
		Status    string `json:"status"`
		PDFBase64 string `json:"pdf_base64"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiRes); err != nil {
		p.logger.ErrorContext(ctx, "DataVerify response is not valid JSON", "error", err)
		return &Result{Success: false, Message: "Provider Error"}, nil
	}

	if apiRes.Status == "success" && apiRes.PDFBase64 != "" {
		// Pass the whole response through: the caller extracts pdf_base64.
		return &Result{Success: true, Data: json.RawMessage(body)}, nil
	}
	msg := apiRes.Message
	if msg == "" {
		msg = "Slip generation failed"
	}
	return &Result{Success: false, Message: msg}, nil
}
