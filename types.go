package enrollflow

import (
	"context"
	"strings"

	"github.com/onvero/enrollflow/session"
)

// Strategy identifies one verification strategy a user may try against an
// identity claim.
type Strategy uint8

const (
	// StrategyCode is an exported constant or variable used by the enrollment engine.
	StrategyCode Strategy = iota
	// StrategyLink is an exported constant or variable used by the enrollment engine.
	StrategyLink
	// StrategyPassword is an exported constant or variable used by the enrollment engine.
	StrategyPassword
)

// String describes the string operation and its observable behavior.
func (s Strategy) String() string {
	switch s {
	case StrategyCode:
		return "code"
	case StrategyLink:
		return "link"
	case StrategyPassword:
		return "password"
	default:
		return "unknown"
	}
}

// CodeTag is the backend-recognized type tag a one-time code is verified
// against. The issuing side does not report which tag it used, so the broker
// walks [codeTagOrder] until one succeeds.
type CodeTag string

const (
	// TagEmail is an exported constant or variable used by the enrollment engine.
	TagEmail CodeTag = "email"
	// TagSignup is an exported constant or variable used by the enrollment engine.
	TagSignup CodeTag = "signup"
	// TagMagicLink is an exported constant or variable used by the enrollment engine.
	TagMagicLink CodeTag = "magiclink"
)

// codeTagOrder is the fixed verification order. The broker stops at the first
// success and never runs tags concurrently: a one-time code is single-use and
// a parallel attempt could consume it.
var codeTagOrder = [...]CodeTag{TagEmail, TagSignup, TagMagicLink}

// FieldID identifies one profile field collected by the progressive
// enrollment steps.
type FieldID string

const (
	// FieldFirstName is an exported constant or variable used by the enrollment engine.
	FieldFirstName FieldID = "first_name"
	// FieldLastName is an exported constant or variable used by the enrollment engine.
	FieldLastName FieldID = "last_name"
	// FieldBirthDate is an exported constant or variable used by the enrollment engine.
	FieldBirthDate FieldID = "birth_date"
	// FieldGender is an exported constant or variable used by the enrollment engine.
	FieldGender FieldID = "gender"
	// FieldPhone is an exported constant or variable used by the enrollment engine.
	FieldPhone FieldID = "phone"
	// FieldSocialHandle is an exported constant or variable used by the enrollment engine.
	FieldSocialHandle FieldID = "social_handle"
)

// ProfileRecord is the persisted user profile returned by [ProfileStore].
// Field values are plain strings; empty or all-whitespace means "not on file".
type ProfileRecord struct {
	UserID       string
	FirstName    string
	LastName     string
	BirthDate    string
	Gender       string
	Phone        string
	SocialHandle string
}

// Field returns the stored value for id, or "" for unknown ids.
func (p ProfileRecord) Field(id FieldID) string {
	switch id {
	case FieldFirstName:
		return p.FirstName
	case FieldLastName:
		return p.LastName
	case FieldBirthDate:
		return p.BirthDate
	case FieldGender:
		return p.Gender
	case FieldPhone:
		return p.Phone
	case FieldSocialHandle:
		return p.SocialHandle
	default:
		return ""
	}
}

// FieldEmpty reports whether the stored value for id is empty after trimming
// whitespace. Planner decisions key off this, never off raw equality.
func (p ProfileRecord) FieldEmpty(id FieldID) bool {
	return strings.TrimSpace(p.Field(id)) == ""
}

// RoleSource identifies one independent role/affiliation source consulted by
// destination resolution, in strict priority order.
type RoleSource uint8

const (
	// RolePlatformAdmin is an exported constant or variable used by the enrollment engine.
	RolePlatformAdmin RoleSource = iota
	// RoleGateOps is an exported constant or variable used by the enrollment engine.
	RoleGateOps
	// RoleVenueStaff is an exported constant or variable used by the enrollment engine.
	RoleVenueStaff
	// RoleOrganizerStaff is an exported constant or variable used by the enrollment engine.
	RoleOrganizerStaff
	// RolePromoter is an exported constant or variable used by the enrollment engine.
	RolePromoter
	// RolePerformer is an exported constant or variable used by the enrollment engine.
	RolePerformer
)

// String describes the string operation and its observable behavior.
func (r RoleSource) String() string {
	switch r {
	case RolePlatformAdmin:
		return "platform_admin"
	case RoleGateOps:
		return "gate_ops"
	case RoleVenueStaff:
		return "venue_staff"
	case RoleOrganizerStaff:
		return "organizer_staff"
	case RolePromoter:
		return "promoter"
	case RolePerformer:
		return "performer"
	default:
		return "unknown"
	}
}

// Destination is the single resolved post-authentication landing route.
type Destination string

const (
	// DestinationAdmin is an exported constant or variable used by the enrollment engine.
	DestinationAdmin Destination = "/admin"
	// DestinationGate is an exported constant or variable used by the enrollment engine.
	DestinationGate Destination = "/gate"
	// DestinationVenue is an exported constant or variable used by the enrollment engine.
	DestinationVenue Destination = "/venue"
	// DestinationOrganizer is an exported constant or variable used by the enrollment engine.
	DestinationOrganizer Destination = "/organizer"
	// DestinationPromoter is an exported constant or variable used by the enrollment engine.
	DestinationPromoter Destination = "/promoter"
	// DestinationPerformer is an exported constant or variable used by the enrollment engine.
	DestinationPerformer Destination = "/performer"
	// DestinationHome is an exported constant or variable used by the enrollment engine.
	DestinationHome Destination = "/home"
)

// Staff reports whether d is a staff-bound destination. Staff-bound flows
// bypass the basic-profile completeness detour.
func (d Destination) Staff() bool {
	return d != "" && d != DestinationHome
}

// IdentityProvider is the primary interface callers must implement to connect
// enrollflow to their identity backend. Implementations classify backend
// failures by wrapping (or returning) the ErrProvider* sentinel errors; any
// unclassified error is treated as ErrProviderUnavailable.
//
//	Docs: docs/engine.md, docs/provider.md
type IdentityProvider interface {
	// SendCodeOrLink asks the backend to deliver a one-time code or clickable
	// link for identity, embedding redirectTarget in the link.
	SendCodeOrLink(ctx context.Context, identity, redirectTarget string) error

	// VerifyCode exchanges a one-time code for a session under the given tag.
	VerifyCode(ctx context.Context, identity, code string, tag CodeTag) (*session.Session, error)

	// SignInPassword exchanges a password for a session.
	SignInPassword(ctx context.Context, identity, secret string) (*session.Session, error)

	// CreateAccountPassword creates a password credential for identity.
	// created is false when the account already exists, which is not an error.
	CreateAccountPassword(ctx context.Context, identity, secret string) (created bool, err error)
}

// ProfileStore is the relational-store interface for profile records and
// enrollment history. GetProfile returns (nil, nil) when no record exists.
//
//	Docs: docs/engine.md, docs/provider.md
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*ProfileRecord, error)
	UpsertProfile(ctx context.Context, userID string, fields map[FieldID]string) error
	CountPriorEnrollments(ctx context.Context, userID string) (int, error)
}

// RoleDirectory answers existence lookups against the role/affiliation
// sources consulted by destination resolution. Only existence matters; row
// contents are never read.
type RoleDirectory interface {
	ExistsIn(ctx context.Context, source RoleSource, userID string) (bool, error)
}

// WizardState enumerates the orchestrator states.
type WizardState uint8

const (
	// StateAwaitingIdentity is an exported constant or variable used by the enrollment engine.
	StateAwaitingIdentity WizardState = iota
	// StateVerifyingIdentity is an exported constant or variable used by the enrollment engine.
	StateVerifyingIdentity
	// StatePasswordFallback is an exported constant or variable used by the enrollment engine.
	StatePasswordFallback
	// StateCollectingSteps is an exported constant or variable used by the enrollment engine.
	StateCollectingSteps
	// StateAwaitingBasicProfile is an exported constant or variable used by the enrollment engine.
	StateAwaitingBasicProfile
	// StateFinalizing is an exported constant or variable used by the enrollment engine.
	StateFinalizing
	// StateDone is an exported constant or variable used by the enrollment engine.
	StateDone
	// StateError is an exported constant or variable used by the enrollment engine.
	StateError
)

// String describes the string operation and its observable behavior.
func (s WizardState) String() string {
	switch s {
	case StateAwaitingIdentity:
		return "awaiting_identity"
	case StateVerifyingIdentity:
		return "verifying_identity"
	case StatePasswordFallback:
		return "password_fallback"
	case StateCollectingSteps:
		return "collecting_steps"
	case StateAwaitingBasicProfile:
		return "awaiting_basic_profile"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// WizardSnapshot is the externally visible wizard state returned by
// [Wizard.Snapshot]. It is a value copy; mutating it has no effect on the
// wizard.
type WizardSnapshot struct {
	RunID    string
	State    WizardState
	Identity string

	// CurrentStep is the field currently being collected, or "" outside
	// StateCollectingSteps.
	CurrentStep FieldID
	// RemainingSteps is the ordered tail of the step plan, current step first.
	RemainingSteps []FieldID

	// LastError is the last classified failure surfaced to the caller, nil
	// after a successful action.
	LastError error

	Finalized   bool
	Destination Destination
}
