package enrollflow

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventCodeSend         = "code_send"
	auditEventCodeVerify       = "code_verify"
	auditEventLinkExchange     = "link_exchange"
	auditEventPasswordFallback = "password_fallback_entered"
	auditEventPasswordCreate   = "password_create"
	auditEventPasswordSignIn   = "password_sign_in"
	auditEventStepSubmit       = "step_submit"
	auditEventStepSkip         = "step_skip"
	auditEventBasicProfile     = "basic_profile_submit"
	auditEventSessionPublish   = "session_publish"
	auditEventRoleResolve      = "role_resolve"
	auditEventFinalize         = "finalize"
	auditEventSignOut          = "sign_out"
	auditEventRateLimited      = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by enrollflow APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrCodeLength         AuditErrorCode = "code_length"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrCrossContext       AuditErrorCode = "link_cross_context"
	auditErrLinkConsumed       AuditErrorCode = "link_consumed"
	auditErrNotFound           AuditErrorCode = "identity_not_found"
	auditErrIdentityFatal      AuditErrorCode = "identity_fatal"
	auditErrSignInDisabled     AuditErrorCode = "sign_in_disabled"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrPasswordInvalid    AuditErrorCode = "password_invalid"
	auditErrFieldRequired      AuditErrorCode = "field_required"
	auditErrFieldFormat        AuditErrorCode = "field_format"
	auditErrAgeOutOfRange      AuditErrorCode = "age_out_of_range"
	auditErrSyncFailed         AuditErrorCode = "session_sync_failed"
	auditErrProfileWrite       AuditErrorCode = "profile_write_failed"
	auditErrAttemptInFlight    AuditErrorCode = "attempt_in_flight"
	auditErrLookupFailed       AuditErrorCode = "role_lookup_failed"
	auditErrBackendUnavailable AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCodeLength):
		return auditErrCodeLength
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrSendRateLimited), errors.Is(err, ErrProviderRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrLinkCrossContext):
		return auditErrCrossContext
	case errors.Is(err, ErrLinkConsumed):
		return auditErrLinkConsumed
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrIdentityFatal):
		return auditErrIdentityFatal
	case errors.Is(err, ErrSignInDisabled):
		return auditErrSignInDisabled
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrPasswordInvalid):
		return auditErrPasswordInvalid
	case errors.Is(err, ErrFieldRequired), errors.Is(err, ErrFieldNotSkippable):
		return auditErrFieldRequired
	case errors.Is(err, ErrFieldFormat), errors.Is(err, ErrBirthDateInvalid):
		return auditErrFieldFormat
	case errors.Is(err, ErrAgeOutOfRange):
		return auditErrAgeOutOfRange
	case errors.Is(err, ErrSessionSyncFailed):
		return auditErrSyncFailed
	case errors.Is(err, ErrProfileWriteFailed):
		return auditErrProfileWrite
	case errors.Is(err, ErrAttemptInFlight):
		return auditErrAttemptInFlight
	case errors.Is(err, ErrProviderUnavailable):
		return auditErrBackendUnavailable
	default:
		return auditErrInternal
	}
}

type auditScope struct {
	runID    string
	userID   string
	identity string
	strategy string
	tag      CodeTag
	step     FieldID
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	scope auditScope,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RunID:     scope.runID,
		UserID:    scope.userID,
		Identity:  scope.identity,
		Step:      string(scope.step),
		Tag:       string(scope.tag),
		Strategy:  scope.strategy,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, operation string, scope auditScope, metadataBuilder func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	metadata := map[string]string{"operation": operation}
	if metadataBuilder != nil {
		for k, v := range metadataBuilder() {
			metadata[k] = v
		}
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventRateLimited,
		RunID:     scope.runID,
		Identity:  scope.identity,
		IP:        clientIPFromContext(ctx),
		Success:   false,
		Error:     string(auditErrRateLimited),
		Metadata:  metadata,
	})
}
