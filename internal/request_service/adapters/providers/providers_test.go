package providers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRobostNINProvider_Submit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/nin_verify", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("api-key"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "12345678901", body["nin"])

			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]string{"first_name": "Ada"},
			})
		}))
		defer server.Close()

		p := NewRobostNINProvider("test-key", server.URL, 5*time.Second, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.JSONEq(t, `{"first_name":"Ada"}`, string(res.Data))
	})

	t.Run("ProviderRejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "No record found"})
		}))
		defer server.Close()

		p := NewRobostNINProvider("test-key", server.URL, 5*time.Second, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "No record found", res.Message)
	})

	t.Run("TimeoutNormalizedToRejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		p := NewRobostNINProvider("test-key", server.URL, 20*time.Millisecond, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err, "timeouts are rejections, not errors")
		assert.False(t, res.Success)
		assert.Equal(t, msgTimedOut, res.Message)
	})

	t.Run("MissingKeyIsConfigError", func(t *testing.T) {
		p := NewRobostNINProvider("", "http://unused.invalid", time.Second, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, msgConfigError, res.Message)
	})
}

func TestDataVerifyVNINProvider_Submit(t *testing.T) {
	t.Run("SuccessCarriesPDF", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			// DataVerify authenticates in the body, not a header.
			assert.Equal(t, "dv-key", body["api_key"])
			assert.Equal(t, "12345678901", body["nin"])

			json.NewEncoder(w).Encode(map[string]string{
				"status":     "success",
				"pdf_base64": "cGRm",
			})
		}))
		defer server.Close()

		p := NewDataVerifyVNINProvider("dv-key", server.URL, 5*time.Second, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, string(res.Data), "cGRm")
	})

	t.Run("MissingPDFIsFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		}))
		defer server.Close()

		p := NewDataVerifyVNINProvider("dv-key", server.URL, 5*time.Second, testLogger())
		res, err := p.Submit(context.Background(), Input{NIN: "12345678901"})

		require.NoError(t, err)
		assert.False(t, res.Success)
	})
}

func TestNinSlipIPEProvider_CheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		response   map[string]any
		wantStatus domain.RequestStatus
	}{
		{
			name:       "Successful",
			response:   map[string]any{"status": "success", "clearance_status": "Successful", "data": map[string]string{"cleared": "yes"}},
			wantStatus: domain.StatusCompleted,
		},
		{
			name:       "Failed",
			response:   map[string]any{"status": "success", "clearance_status": "Failed", "message": "Clearance Failed"},
			wantStatus: domain.StatusFailed,
		},
		{
			name:       "Rejected",
			response:   map[string]any{"clearance_status": "Rejected"},
			wantStatus: domain.StatusFailed,
		},
		{
			name:       "StillPending",
			response:   map[string]any{"status": "success", "clearance_status": "Pending"},
			wantStatus: domain.StatusProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/status.php", r.URL.Path)
				assert.Equal(t, "Bearer ns-key", r.Header.Get("Authorization"))
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			p := NewNinSlipIPEProvider("ns-key", server.URL, 5*time.Second, testLogger())
			res, err := p.CheckStatus(context.Background(), "TRK-1")

			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}

	t.Run("PollTimeoutIsNotTerminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		p := NewNinSlipIPEProvider("ns-key", server.URL, 20*time.Millisecond, testLogger())
		res, err := p.CheckStatus(context.Background(), "TRK-1")

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Empty(t, res.Status)
	})
}

func TestRobostPersonalizationProvider_CheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personalization_status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"status":  "completed",
			"data":    map[string]string{"done": "yes"},
		})
	}))
	defer server.Close()

	p := NewRobostPersonalizationProvider("rb-key", server.URL, 5*time.Second, testLogger())
	res, err := p.CheckStatus(context.Background(), "TRK-9")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatusCompleted, res.Status)
}
