package domain

import (
	"errors"
	"time"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	// ErrInvalidServiceCode means a numeric selector either does not exist
	// or resolved to a service outside the family the endpoint serves.
	ErrInvalidServiceCode = errors.New("invalid service code")
	ErrServiceInactive    = errors.New("service is currently inactive")
)

// Canonical service type identifiers. Prices and availability live in the
// services table; these constants are the stable keys.
const (
	TypeNINVerification  = "NIN_VERIFICATION"
	TypeNINSearchByPhone = "NIN_SEARCH_BY_PHONE"

	TypeVNINSlip    = "VNIN_SLIP"
	TypeVNINToNIBSS = "VNIN_TO_NIBSS"

	TypeNINSlipPremium  = "NIN_SLIP_PREMIUM"
	TypeNINSlipStandard = "NIN_SLIP_STANDARD"
	TypeNINSlipRegular  = "NIN_SLIP_REGULAR"

	TypeNINValidationNoRecord     = "NIN_VALIDATION_NO_RECORD"
	TypeNINValidationUpdateRecord = "NIN_VALIDATION_UPDATE_RECORD"
	TypeNINValidationVNIN         = "NIN_VALIDATION_VNIN"

	TypeNINModificationName    = "NIN_MODIFICATION_NAME"
	TypeNINModificationPhone   = "NIN_MODIFICATION_PHONE"
	TypeNINModificationAddress = "NIN_MODIFICATION_ADDRESS"

	TypeNINPersonalization = "NIN_PERSONALIZATION"
	TypeIPEClearance       = "IPE_CLEARANCE"
)

// Service is a priced, independently toggleable capability. Rows are
// written by the seeder/admin process and read-only from the engine.
type Service struct {
	ID          int64
	Code        string // canonical type, e.g. NIN_VERIFICATION
	ServiceCode *int   // optional numeric selector, e.g. 330
	Name        string
	Description string
	Price       float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Family groups sibling services reachable through one endpoint via
// numeric codes. Numeric-code resolution must reject a code that exists
// but belongs to another family.
type Family string

const (
	FamilyValidation   Family = "validation"   // 329, 330, 331
	FamilyModification Family = "modification" // 501, 502, 503
	FamilySlip         Family = "slip"         // 401, 402, 403
)

var familyMembers = map[Family][]string{
	FamilyValidation:   {TypeNINValidationNoRecord, TypeNINValidationUpdateRecord, TypeNINValidationVNIN},
	FamilyModification: {TypeNINModificationName, TypeNINModificationPhone, TypeNINModificationAddress},
	FamilySlip:         {TypeNINSlipPremium, TypeNINSlipStandard, TypeNINSlipRegular},
}

// InFamily reports whether a canonical type belongs to a family.
func InFamily(family Family, code string) bool {
	for _, member := range familyMembers[family] {
		if member == code {
			return true
		}
	}
	return false
}

// Kind drives the lifecycle engine's outcome strategy for a service type.
type Kind int

const (
	// KindSyncLookup resolves immediately: adapter success completes the
	// request with data, failure refunds.
	KindSyncLookup Kind = iota
	// KindSyncDocument is a lookup followed by a document render; the
	// caller receives a PDF only, never raw identity fields.
	KindSyncDocument
	// KindAsync submits to a provider that works asynchronously; accepted
	// requests stay PROCESSING until the sweeper resolves them.
	KindAsync
	// KindManual has no adapter at all; a human resolves the request
	// through the admin review path.
	KindManual
)

var kindByType = map[string]Kind{
	TypeNINVerification:  KindSyncLookup,
	TypeNINSearchByPhone: KindSyncLookup,

	TypeVNINSlip:        KindSyncDocument,
	TypeNINSlipPremium:  KindSyncDocument,
	TypeNINSlipStandard: KindSyncDocument,
	TypeNINSlipRegular:  KindSyncDocument,

	TypeIPEClearance:       KindAsync,
	TypeNINPersonalization: KindAsync,

	TypeNINValidationNoRecord:     KindManual,
	TypeNINValidationUpdateRecord: KindManual,
	TypeNINValidationVNIN:         KindManual,
	TypeNINModificationName:       KindManual,
	TypeNINModificationPhone:      KindManual,
	TypeNINModificationAddress:    KindManual,
}

// KindOf returns the engine strategy for a service type. Catalog rows with
// no engine support (BVN, utilities, education pins) default to KindManual
// and are not exposed through the submission endpoints.
func KindOf(serviceType string) Kind {
	if k, ok := kindByType[serviceType]; ok {
		return k
	}
	return KindManual
}

// SlipTemplateFor maps a slip service type to its render template.
// VNIN slips are rendered upstream by the provider, so they carry no
// local template.
func SlipTemplateFor(serviceType string) string {
	switch serviceType {
	case TypeNINSlipPremium:
		return "premium"
	case TypeNINSlipStandard:
		return "standard"
	case TypeNINSlipRegular:
		return "regular"
	}
	return ""
}
