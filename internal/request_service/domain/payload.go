package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidInput covers every payload shape failure. Wrap it with the
// field-level detail so the HTTP boundary can answer 400 with a message.
var ErrInvalidInput = errors.New("invalid input")

var (
	ninPattern   = regexp.MustCompile(`^\d{11}$`)
	phonePattern = regexp.MustCompile(`^0\d{10}$`)
)

// Payload is the tagged union of service-specific request bodies. Each
// variant knows its own shape rules; the engine never inspects untyped
// maps. Variants cross the storage boundary through Encode/Decode only.
type Payload interface {
	Validate() error
	Reference() string
	kind() string
}

const (
	kindNIN          = "nin"
	kindPhone        = "phone"
	kindTracking     = "tracking"
	kindSlip         = "slip"
	kindValidation   = "validation"
	kindModification = "modification"
)

// NINPayload looks up a National Identification Number.
type NINPayload struct {
	NIN             string `json:"nin"`
	ClientReference string `json:"client_reference,omitempty"`
}

func (p NINPayload) kind() string      { return kindNIN }
func (p NINPayload) Reference() string { return p.ClientReference }

func (p NINPayload) Validate() error {
	if !ninPattern.MatchString(p.NIN) {
		return fmt.Errorf("%w: nin must be exactly 11 digits", ErrInvalidInput)
	}
	return nil
}

// PhonePayload searches identity records by phone number.
type PhonePayload struct {
	Phone           string `json:"phone"`
	ClientReference string `json:"client_reference,omitempty"`
}

func (p PhonePayload) kind() string      { return kindPhone }
func (p PhonePayload) Reference() string { return p.ClientReference }

func (p PhonePayload) Validate() error {
	if !phonePattern.MatchString(p.Phone) {
		return fmt.Errorf("%w: phone must be 11 digits starting with 0", ErrInvalidInput)
	}
	return nil
}

// TrackingPayload carries the provider tracking id for async services
// (IPE clearance, personalization).
type TrackingPayload struct {
	TrackingID      string `json:"tracking_id"`
	ClientReference string `json:"client_reference,omitempty"`
}

func (p TrackingPayload) kind() string      { return kindTracking }
func (p TrackingPayload) Reference() string { return p.ClientReference }

func (p TrackingPayload) Validate() error {
	if p.TrackingID == "" {
		return fmt.Errorf("%w: tracking_id is required", ErrInvalidInput)
	}
	if len(p.TrackingID) > 64 {
		return fmt.Errorf("%w: tracking_id too long", ErrInvalidInput)
	}
	return nil
}

// SlipPayload requests a slip document. Method selects how the record is
// located (by nin or by phone); Template is the render variant and is
// empty for provider-rendered VNIN slips.
type SlipPayload struct {
	Value           string `json:"value"`
	Method          string `json:"method"`
	Template        string `json:"template,omitempty"`
	ClientReference string `json:"client_reference,omitempty"`
}

func (p SlipPayload) kind() string      { return kindSlip }
func (p SlipPayload) Reference() string { return p.ClientReference }

func (p SlipPayload) Validate() error {
	switch p.Method {
	case "nin":
		if !ninPattern.MatchString(p.Value) {
			return fmt.Errorf("%w: nin must be exactly 11 digits", ErrInvalidInput)
		}
	case "phone":
		if !phonePattern.MatchString(p.Value) {
			return fmt.Errorf("%w: phone must be 11 digits starting with 0", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: method must be nin or phone", ErrInvalidInput)
	}
	return nil
}

// ValidationPayload queues a manual NIN validation (codes 329-331).
type ValidationPayload struct {
	NIN             string `json:"nin"`
	ServiceCode     int    `json:"service_code"`
	ClientReference string `json:"client_reference,omitempty"`
}

func (p ValidationPayload) kind() string      { return kindValidation }
func (p ValidationPayload) Reference() string { return p.ClientReference }

func (p ValidationPayload) Validate() error {
	if !ninPattern.MatchString(p.NIN) {
		return fmt.Errorf("%w: nin must be exactly 11 digits", ErrInvalidInput)
	}
	return nil
}

// ModificationData is the change-set for a manual modification. Which
// fields are required depends on the service code.
type ModificationData struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	NewPhone   string `json:"new_phone,omitempty"`
	Address    string `json:"address,omitempty"`
	State      string `json:"state,omitempty"`
	LGA        string `json:"lga,omitempty"`
}

// ModificationPayload queues a manual NIN modification (codes 501-503).
type ModificationPayload struct {
	NIN             string           `json:"nin"`
	ServiceCode     int              `json:"service_code"`
	Data            ModificationData `json:"data"`
	ClientReference string           `json:"client_reference,omitempty"`
}

func (p ModificationPayload) kind() string      { return kindModification }
func (p ModificationPayload) Reference() string { return p.ClientReference }

func (p ModificationPayload) Validate() error {
	if !ninPattern.MatchString(p.NIN) {
		return fmt.Errorf("%w: nin must be exactly 11 digits", ErrInvalidInput)
	}
	switch p.ServiceCode {
	case 501: // name change
		if p.Data.FirstName == "" && p.Data.LastName == "" && p.Data.MiddleName == "" {
			return fmt.Errorf("%w: at least one name field is required", ErrInvalidInput)
		}
	case 502: // phone change
		if !phonePattern.MatchString(p.Data.NewPhone) {
			return fmt.Errorf("%w: new_phone must be 11 digits starting with 0", ErrInvalidInput)
		}
	case 503: // address change
		if p.Data.Address == "" {
			return fmt.Errorf("%w: address is required", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown modification code %d", ErrInvalidInput, p.ServiceCode)
	}
	return nil
}

// payloadEnvelope is the on-disk shape of request_data. The kind tag
// selects the variant on decode; client_reference is lifted to the top
// level so reference lookups can use a single JSONB path.
type payloadEnvelope struct {
	Kind            string          `json:"kind"`
	ClientReference string          `json:"client_reference,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload variant for storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	env := payloadEnvelope{Kind: p.kind(), ClientReference: p.Reference(), Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload envelope: %w", err)
	}
	return raw, nil
}

// DecodePayload restores the typed variant from stored request_data.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}

	var p Payload
	switch env.Kind {
	case kindNIN:
		var v NINPayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	case kindPhone:
		var v PhonePayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	case kindTracking:
		var v TrackingPayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	case kindSlip:
		var v SlipPayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	case kindValidation:
		var v ValidationPayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	case kindModification:
		var v ModificationPayload
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}
	return p, nil
}

// TrackingIDFrom extracts the tracking id from stored request_data
// without decoding the full variant. The sweeper uses it to build
// checkStatus calls for async rows.
func TrackingIDFrom(raw json.RawMessage) (string, bool) {
	p, err := DecodePayload(raw)
	if err != nil {
		return "", false
	}
	t, ok := p.(TrackingPayload)
	if !ok || t.TrackingID == "" {
		return "", false
	}
	return t.TrackingID, true
}
