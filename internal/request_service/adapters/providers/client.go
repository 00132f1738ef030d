package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	msgConfigError = "Service Configuration Error"
	msgTimedOut    = "Service Timed Out"
)

// newHTTPClient builds the client every adapter shares the shape of. The
// timeout bounds the whole request including body read; providers here
// are slow (PDF generation can take close to a minute).
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON performs a JSON POST and returns the raw response body.
// A timeout is reported via isTimeout so callers can normalize it into a
// rejection instead of an error.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (respBody []byte, isTimeout bool, err error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, true, err
		}
		return nil, false, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		if isTimeoutErr(err) {
			return nil, true, err
		}
		return nil, false, fmt.Errorf("failed to read provider response: %w", err)
	}
	return respBody, false, nil
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
