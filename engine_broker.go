package enrollflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onvero/enrollflow/internal"
	"github.com/onvero/enrollflow/session"
)

func (e *Engine) providerCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Broker.CallTimeout)
}

// sendCodeOrLink delivers a fresh one-time credential for identity and
// returns the plaintext continuation secret held by the originating wizard.
// A fresh send invalidates any outstanding continuation record and pending
// attempt guard for the same claim before the provider is called.
func (e *Engine) sendCodeOrLink(ctx context.Context, runID, identity string) ([32]byte, error) {
	var zero [32]byte

	identity = strings.TrimSpace(strings.ToLower(identity))
	if identity == "" || !strings.Contains(identity, "@") {
		return zero, ErrIdentityInvalid
	}

	claimKey := internal.ClaimKey(identity)
	scope := auditScope{runID: runID, identity: identity, strategy: StrategyCode.String()}

	if e.sendLimiter != nil {
		if err := e.sendLimiter.Check(ctx, claimKey, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, errSendRateLimited) {
				e.metricInc(MetricCodeSendRateLimited)
				e.emitAudit(ctx, auditEventCodeSend, false, scope, ErrSendRateLimited, nil)
				e.emitRateLimit(ctx, "send", scope, nil)
				return zero, ErrSendRateLimited
			}
			e.metricInc(MetricCodeSendFailure)
			e.emitAudit(ctx, auditEventCodeSend, false, scope, ErrProviderUnavailable, nil)
			return zero, ErrProviderUnavailable
		}
	}

	// Outstanding credentials from an earlier send are dead once a new one
	// is issued, and a session published by a different identity in the same
	// browser slot must not survive a fresh verification. Clearing failures
	// are not fatal to the send itself.
	_ = e.continuation.Clear(ctx, claimKey)
	_ = e.attemptGuard.Release(ctx, claimKey)
	_ = e.sessionStore.Delete(ctx, e.config.Sync.RecordName(), browserContextFromContext(ctx))

	secret, err := internal.NewContinuationSecret()
	if err != nil {
		e.metricInc(MetricCodeSendFailure)
		e.emitAudit(ctx, auditEventCodeSend, false, scope, err, nil)
		return zero, err
	}

	record := &continuationRecord{
		SecretHash: internal.HashContinuationSecret(secret),
		IssuedAt:   time.Now().Unix(),
	}
	if err := e.continuation.Save(ctx, claimKey, record, e.config.Broker.LinkTTL); err != nil {
		e.metricInc(MetricCodeSendFailure)
		e.emitAudit(ctx, auditEventCodeSend, false, scope, ErrProviderUnavailable, nil)
		return zero, ErrProviderUnavailable
	}

	cctx, cancel := e.providerCall(ctx)
	err = e.identity.SendCodeOrLink(cctx, identity, e.config.Broker.RedirectTarget)
	cancel()
	if err != nil {
		mapped := mapSendProviderError(err)
		if errors.Is(mapped, ErrSendRateLimited) {
			e.metricInc(MetricCodeSendRateLimited)
			e.emitRateLimit(ctx, "send", scope, nil)
		} else {
			e.metricInc(MetricCodeSendFailure)
		}
		e.emitAudit(ctx, auditEventCodeSend, false, scope, mapped, nil)
		return zero, mapped
	}

	e.metricInc(MetricCodeSendSuccess)
	e.emitAudit(ctx, auditEventCodeSend, true, scope, nil, nil)

	return secret, nil
}

// sanitizeCode strips everything but digits from raw and caps the result at
// digits characters. Anything shorter is rejected locally without spending a
// provider attempt.
func sanitizeCode(raw string, digits int) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == digits {
			break
		}
	}
	if b.Len() != digits {
		return "", ErrCodeLength
	}
	return b.String(), nil
}

// attemptCode verifies a sanitized code against each recognized tag in order
// and stops at the first success. Not-found, disabled, rate-limited, and
// unavailable outcomes short-circuit the walk; expired and invalid outcomes
// move on to the next tag.
func (e *Engine) attemptCode(ctx context.Context, runID, identity, code string) (*session.Session, error) {
	claimKey := internal.ClaimKey(identity)
	scope := auditScope{runID: runID, identity: identity, strategy: StrategyCode.String()}

	if err := e.attemptGuard.Acquire(ctx, claimKey, e.config.Broker.PendingAttemptTTL); err != nil {
		if errors.Is(err, errAttemptInFlight) {
			e.metricInc(MetricAttemptRejected)
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrAttemptInFlight, nil)
			return nil, ErrAttemptInFlight
		}
		e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrProviderUnavailable, nil)
		return nil, ErrProviderUnavailable
	}
	defer func() {
		_ = e.attemptGuard.Release(ctx, claimKey)
	}()

	var (
		sawExpired bool
		lastErr    error
	)

	for _, tag := range codeTagOrder {
		cctx, cancel := e.providerCall(ctx)
		sess, err := e.identity.VerifyCode(cctx, identity, code, tag)
		cancel()

		if err == nil {
			e.metricInc(MetricCodeVerifySuccess)
			e.emitAudit(ctx, auditEventCodeVerify, true, scope, nil, func() map[string]string {
				return map[string]string{"tag": string(tag)}
			})
			return sess, nil
		}

		switch {
		case errors.Is(err, ErrProviderUserNotFound):
			e.metricInc(MetricCodeVerifyFatal)
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrIdentityNotFound, nil)
			return nil, ErrIdentityNotFound
		case errors.Is(err, ErrProviderDisabled):
			e.metricInc(MetricCodeVerifyFatal)
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrSignInDisabled, nil)
			return nil, ErrSignInDisabled
		case errors.Is(err, ErrProviderRateLimited):
			e.metricInc(MetricCodeVerifyFatal)
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrSendRateLimited, nil)
			e.emitRateLimit(ctx, "verify", scope, nil)
			return nil, ErrSendRateLimited
		case errors.Is(err, ErrProviderCodeExpired):
			sawExpired = true
			lastErr = ErrCodeExpired
		case errors.Is(err, ErrProviderCodeInvalid):
			if lastErr == nil {
				lastErr = ErrCodeInvalid
			}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrProviderUnavailable, nil)
			return nil, ErrProviderUnavailable
		default:
			e.emitAudit(ctx, auditEventCodeVerify, false, scope, ErrProviderUnavailable, nil)
			return nil, ErrProviderUnavailable
		}
	}

	if sawExpired {
		lastErr = ErrCodeExpired
		e.metricInc(MetricCodeVerifyExpired)
	} else {
		e.metricInc(MetricCodeVerifyInvalid)
	}
	e.emitAudit(ctx, auditEventCodeVerify, false, scope, lastErr, nil)

	return nil, lastErr
}

func mapSendProviderError(err error) error {
	switch {
	case errors.Is(err, ErrProviderRateLimited):
		return ErrSendRateLimited
	case errors.Is(err, ErrProviderUserNotFound):
		return ErrIdentityNotFound
	case errors.Is(err, ErrProviderDisabled):
		return ErrSignInDisabled
	default:
		return ErrProviderUnavailable
	}
}
