package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// MockProvider is a simulated identity provider for testing and
// development. It satisfies both Provider and StatusChecker.
type MockProvider struct {
	logger       *slog.Logger
	name         string
	failRate     float64 // chance to simulate rejection (0.0 to 1.0)
	minLatencyMs int
	maxLatencyMs int
}

// NewMockProvider creates a new MockProvider.
func NewMockProvider(logger *slog.Logger, name string, failRate float64, minLatencyMs, maxLatencyMs int) *MockProvider {
	if name == "" {
		name = "mock-provider"
	}
	return &MockProvider{
		logger:       logger.With("provider", name),
		name:         name,
		failRate:     failRate,
		minLatencyMs: minLatencyMs,
		maxLatencyMs: maxLatencyMs,
	}
}

func (p *MockProvider) GetName() string { return p.name }

func (p *MockProvider) sleep() {
	if p.maxLatencyMs > p.minLatencyMs {
		latency := p.minLatencyMs + rand.Intn(p.maxLatencyMs-p.minLatencyMs+1)
		time.Sleep(time.Duration(latency) * time.Millisecond)
	}
}

func (p *MockProvider) Submit(ctx context.Context, input Input) (*Result, error) {
	p.sleep()

	if rand.Float64() < p.failRate {
		p.logger.WarnContext(ctx, "MockProvider: simulated rejection", "nin", input.NIN, "tracking_id", input.TrackingID)
		return &Result{Success: false, Message: "simulated provider rejection"}, nil
	}

	data, _ := json.Marshal(map[string]string{
		"first_name": "Test",
		"last_name":  "Agent",
		"nin":        input.NIN,
		"phone":      input.Phone,
		"photo":      "",
		// Keeps the provider-rendered slip path working in mock mode.
		"pdf_base64": "bW9jay1wZGY=",
	})
	p.logger.InfoContext(ctx, "MockProvider: submission accepted (simulated)")
	return &Result{Success: true, Data: data}, nil
}

func (p *MockProvider) CheckStatus(ctx context.Context, trackingID string) (*Result, error) {
	p.sleep()

	if rand.Float64() < p.failRate {
		return &Result{Success: true, Status: domain.StatusFailed, Message: "simulated clearance failure"}, nil
	}
	data, _ := json.Marshal(map[string]string{"tracking_id": trackingID, "clearance": "cleared"})
	return &Result{Success: true, Status: domain.StatusCompleted, Data: data}, nil
}
