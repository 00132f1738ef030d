package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound = errors.New("service request not found")
)

// RequestStatus is the lifecycle state of a ServiceRequest.
// PROCESSING is the only initial state; COMPLETED and FAILED are terminal
// and no transition ever leaves a terminal state.
type RequestStatus string

const (
	StatusProcessing RequestStatus = "PROCESSING"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusFailed     RequestStatus = "FAILED"
)

// IsTerminal reports whether a status ends the request lifecycle.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ServiceRequest is the audit record and state-machine instance for one
// unit of purchased work. Cost is pinned at creation and never
// recalculated, even if the service price changes afterwards.
type ServiceRequest struct {
	ID          uuid.UUID
	AgentID     uuid.UUID
	ServiceType string
	Status      RequestStatus
	Cost        float64

	// RequestData is the typed payload union encoded at the storage
	// boundary; ResponseData holds the provider result or error detail.
	RequestData  json.RawMessage
	ResponseData json.RawMessage

	// AdminNote carries manual-queue and refund annotations.
	AdminNote *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolutionEvent is published on the message bus whenever a request
// reaches a terminal state and the owning agent has a webhook URL.
// Webhook delivery itself is an external consumer of these events.
type ResolutionEvent struct {
	RequestID   uuid.UUID     `json:"request_id"`
	AgentID     uuid.UUID     `json:"agent_id"`
	ServiceType string        `json:"service_type"`
	Status      RequestStatus `json:"status"`
	WebhookURL  string        `json:"webhook_url"`
	ResolvedAt  time.Time     `json:"resolved_at"`
}

// SubjectRequestResolved is the NATS subject resolution events go out on.
const SubjectRequestResolved = "identity.requests.resolved"
