package enrollflow

import "errors"

// Provider classification sentinels. IdentityProvider implementations wrap
// their backend failures in these so the broker can classify outcomes with
// errors.Is. Anything unwrapped is treated as ErrProviderUnavailable.
var (
	// ErrProviderRateLimited is an exported constant or variable used by the enrollment engine.
	ErrProviderRateLimited = errors.New("provider rate limited")
	// ErrProviderDisabled is an exported constant or variable used by the enrollment engine.
	ErrProviderDisabled = errors.New("provider sign-in disabled")
	// ErrProviderCodeExpired is an exported constant or variable used by the enrollment engine.
	ErrProviderCodeExpired = errors.New("provider code expired")
	// ErrProviderCodeInvalid is an exported constant or variable used by the enrollment engine.
	ErrProviderCodeInvalid = errors.New("provider code invalid")
	// ErrProviderUserNotFound is an exported constant or variable used by the enrollment engine.
	ErrProviderUserNotFound = errors.New("provider user not found")
	// ErrProviderCredentialsNotReady is an exported constant or variable used by the enrollment engine.
	ErrProviderCredentialsNotReady = errors.New("provider credentials not yet committed")
	// ErrProviderInvalidCredentials is an exported constant or variable used by the enrollment engine.
	ErrProviderInvalidCredentials = errors.New("provider invalid credentials")
	// ErrProviderUnavailable is an exported constant or variable used by the enrollment engine.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Retryable-input failures: surfaced with a corrective message, wizard state
// does not move.
var (
	// ErrCodeLength is an exported constant or variable used by the enrollment engine.
	ErrCodeLength = errors.New("code shorter than configured digit length")
	// ErrCodeExpired is an exported constant or variable used by the enrollment engine.
	ErrCodeExpired = errors.New("code expired")
	// ErrCodeInvalid is an exported constant or variable used by the enrollment engine.
	ErrCodeInvalid = errors.New("code invalid")
	// ErrPasswordPolicy is an exported constant or variable used by the enrollment engine.
	ErrPasswordPolicy = errors.New("password below minimum length")
	// ErrPasswordMismatch is an exported constant or variable used by the enrollment engine.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")
	// ErrPasswordInvalid is an exported constant or variable used by the enrollment engine.
	ErrPasswordInvalid = errors.New("invalid password")
)

// Fallback-triggering failures: the wizard transitions to the password path
// instead of dead-ending.
var (
	// ErrSendRateLimited is an exported constant or variable used by the enrollment engine.
	ErrSendRateLimited = errors.New("code or link send rate limited")
	// ErrLinkCrossContext is an exported constant or variable used by the enrollment engine.
	ErrLinkCrossContext = errors.New("link opened outside originating browser context")
	// ErrLinkConsumed is an exported constant or variable used by the enrollment engine.
	ErrLinkConsumed = errors.New("link already consumed or expired")
)

// Fatal-identity failures: terminal, the flow restarts from identity entry.
var (
	// ErrIdentityNotFound is an exported constant or variable used by the enrollment engine.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityFatal is an exported constant or variable used by the enrollment engine.
	ErrIdentityFatal = errors.New("identity verification failed permanently")
	// ErrSignInDisabled is an exported constant or variable used by the enrollment engine.
	ErrSignInDisabled = errors.New("sign-in disabled for identity")
)

// Validation failures: local to step submission, block advancement only.
var (
	// ErrFieldRequired is an exported constant or variable used by the enrollment engine.
	ErrFieldRequired = errors.New("field value required")
	// ErrFieldFormat is an exported constant or variable used by the enrollment engine.
	ErrFieldFormat = errors.New("field value malformed")
	// ErrFieldNotSkippable is an exported constant or variable used by the enrollment engine.
	ErrFieldNotSkippable = errors.New("field cannot be skipped")
	// ErrBirthDateInvalid is an exported constant or variable used by the enrollment engine.
	ErrBirthDateInvalid = errors.New("birth date not a real calendar date")
	// ErrAgeOutOfRange is an exported constant or variable used by the enrollment engine.
	ErrAgeOutOfRange = errors.New("computed age outside allowed range")
)

// Finalization failures: recoverable without re-verifying identity.
var (
	// ErrSessionSyncFailed is an exported constant or variable used by the enrollment engine.
	ErrSessionSyncFailed = errors.New("session record publish failed")
	// ErrProfileWriteFailed is an exported constant or variable used by the enrollment engine.
	ErrProfileWriteFailed = errors.New("profile write failed")
	// ErrBasicProfileIncomplete is an exported constant or variable used by the enrollment engine.
	ErrBasicProfileIncomplete = errors.New("basic profile incomplete")
)

// Orchestration/protocol errors.
var (
	// ErrAttemptInFlight is an exported constant or variable used by the enrollment engine.
	ErrAttemptInFlight = errors.New("verification attempt already pending for identity")
	// ErrIdentityInvalid is an exported constant or variable used by the enrollment engine.
	ErrIdentityInvalid = errors.New("identity claim is not a plausible email address")
	// ErrWrongState is an exported constant or variable used by the enrollment engine.
	ErrWrongState = errors.New("operation not valid in current wizard state")
	// ErrStepUnknown is an exported constant or variable used by the enrollment engine.
	ErrStepUnknown = errors.New("step is not part of the current plan")
	// ErrEngineNotReady is an exported constant or variable used by the enrollment engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// failureClass is the closed taxonomy consumed by the wizard's transition
// table. Every failure path maps to exactly one class; nothing is swallowed.
type failureClass uint8

const (
	classNone failureClass = iota
	classRetryable
	classFallback
	classFatal
	classValidation
	classFinalization
)

func classifyFailure(err error) failureClass {
	switch {
	case err == nil:
		return classNone
	case errors.Is(err, ErrCodeLength),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordInvalid),
		errors.Is(err, ErrAttemptInFlight):
		return classRetryable
	case errors.Is(err, ErrSendRateLimited),
		errors.Is(err, ErrLinkCrossContext),
		errors.Is(err, ErrLinkConsumed):
		return classFallback
	case errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrIdentityFatal),
		errors.Is(err, ErrSignInDisabled):
		return classFatal
	case errors.Is(err, ErrFieldRequired),
		errors.Is(err, ErrFieldFormat),
		errors.Is(err, ErrFieldNotSkippable),
		errors.Is(err, ErrBirthDateInvalid),
		errors.Is(err, ErrAgeOutOfRange):
		return classValidation
	case errors.Is(err, ErrSessionSyncFailed),
		errors.Is(err, ErrProfileWriteFailed),
		errors.Is(err, ErrBasicProfileIncomplete):
		return classFinalization
	default:
		return classRetryable
	}
}
