package providers

import (
	"context"
	"encoding/json"

	"github.com/veripoint/identity-gateway/internal/request_service/domain"
)

// Input carries the validated fields an adapter needs. Each adapter reads
// only the fields its provider expects.
type Input struct {
	NIN        string
	Phone      string
	TrackingID string
}

// Result is the uniform, normalized outcome of a provider call. Adapters
// translate every provider-specific response shape into this: transport
// errors and timeouts become Success=false with a message, never a Go
// error. Status is set by status checks only (COMPLETED, FAILED, or
// PROCESSING when the provider is still working).
type Result struct {
	Success bool
	Status  domain.RequestStatus
	Data    json.RawMessage
	Message string
}

// Provider submits one unit of work to an upstream identity service.
type Provider interface {
	Submit(ctx context.Context, input Input) (*Result, error)
	GetName() string
}

// StatusChecker polls an asynchronous provider for the outcome of a
// previously accepted submission. The sweeper drives these.
type StatusChecker interface {
	CheckStatus(ctx context.Context, trackingID string) (*Result, error)
}

// AsyncProvider both accepts work and answers later status polls.
type AsyncProvider interface {
	Provider
	StatusChecker
}
