package docrender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Renderer turns looked-up identity data into a slip document. The
// output is always base64-encoded PDF bytes; callers never see raw
// identity fields once rendering is involved.
type Renderer interface {
	Render(ctx context.Context, template string, data json.RawMessage) (pdfBase64 string, err error)
}

// HTTPRenderer calls the internal document render service.
type HTTPRenderer struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPRenderer(url string, timeout time.Duration, logger *slog.Logger) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "docrender"),
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, template string, data json.RawMessage) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"template": template,
		"data":     json.RawMessage(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("document render request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read render response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "Document render service returned an error",
			"status_code", resp.StatusCode, "template", template)
		return "", fmt.Errorf("document render failed with status %d", resp.StatusCode)
	}

	var renderRes struct {
		PDFBase64 string `json:"pdf_base64"`
	}
	if err := json.Unmarshal(body, &renderRes); err != nil {
		return "", fmt.Errorf("failed to decode render response: %w", err)
	}
	if renderRes.PDFBase64 == "" {
		return "", fmt.Errorf("document render returned an empty document")
	}
	return renderRes.PDFBase64, nil
}
