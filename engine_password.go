package enrollflow

import (
	"context"
	"errors"
	"time"

	"github.com/onvero/enrollflow/session"
)

// createAndSignInPassword creates a password credential for identity and
// immediately signs in with it. Providers commit new credentials
// asynchronously, so the sign-in retries while the provider reports the
// credential as not yet ready.
func (e *Engine) createAndSignInPassword(ctx context.Context, runID, identity, secret, confirm string) (*session.Session, error) {
	scope := auditScope{runID: runID, identity: identity, strategy: StrategyPassword.String()}

	if len(secret) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordCreate, false, scope, ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	}
	if secret != confirm {
		e.emitAudit(ctx, auditEventPasswordCreate, false, scope, ErrPasswordMismatch, nil)
		return nil, ErrPasswordMismatch
	}

	cctx, cancel := e.providerCall(ctx)
	created, err := e.identity.CreateAccountPassword(cctx, identity, secret)
	cancel()
	if err != nil {
		mapped := mapPasswordProviderError(err)
		e.emitAudit(ctx, auditEventPasswordCreate, false, scope, mapped, nil)
		return nil, mapped
	}

	e.metricInc(MetricPasswordCreateSuccess)
	e.emitAudit(ctx, auditEventPasswordCreate, true, scope, nil, func() map[string]string {
		if created {
			return map[string]string{"account": "created"}
		}
		return map[string]string{"account": "existing"}
	})

	return e.signInPassword(ctx, runID, identity, secret)
}

// signInPassword exchanges a password for a session, retrying while the
// provider reports the credential as not yet committed.
func (e *Engine) signInPassword(ctx context.Context, runID, identity, secret string) (*session.Session, error) {
	scope := auditScope{runID: runID, identity: identity, strategy: StrategyPassword.String()}

	if secret == "" {
		e.emitAudit(ctx, auditEventPasswordSignIn, false, scope, ErrPasswordInvalid, nil)
		return nil, ErrPasswordInvalid
	}

	var lastErr error

	for attempt := 1; attempt <= e.config.Password.SignInMaxAttempts; attempt++ {
		cctx, cancel := e.providerCall(ctx)
		sess, err := e.identity.SignInPassword(cctx, identity, secret)
		cancel()

		if err == nil {
			e.metricInc(MetricPasswordSignInSuccess)
			e.emitAudit(ctx, auditEventPasswordSignIn, true, scope, nil, nil)
			return sess, nil
		}

		if !errors.Is(err, ErrProviderCredentialsNotReady) {
			mapped := mapPasswordProviderError(err)
			e.metricInc(MetricPasswordSignInFailure)
			e.emitAudit(ctx, auditEventPasswordSignIn, false, scope, mapped, nil)
			return nil, mapped
		}

		lastErr = ErrProviderCredentialsNotReady
		if attempt == e.config.Password.SignInMaxAttempts {
			break
		}

		e.metricInc(MetricPasswordSignInRetry)
		if err := sleepContext(ctx, time.Duration(attempt)*e.config.Password.SignInBackoffStep); err != nil {
			e.metricInc(MetricPasswordSignInFailure)
			e.emitAudit(ctx, auditEventPasswordSignIn, false, scope, ErrProviderUnavailable, nil)
			return nil, ErrProviderUnavailable
		}
	}

	e.metricInc(MetricPasswordSignInFailure)
	e.emitAudit(ctx, auditEventPasswordSignIn, false, scope, lastErr, func() map[string]string {
		return map[string]string{"reason": "credentials_never_ready"}
	})

	// The retry budget is spent; the credential never became usable.
	return nil, ErrIdentityFatal
}

func mapPasswordProviderError(err error) error {
	switch {
	case errors.Is(err, ErrProviderInvalidCredentials):
		return ErrPasswordInvalid
	case errors.Is(err, ErrProviderUserNotFound):
		return ErrIdentityNotFound
	case errors.Is(err, ErrProviderDisabled):
		return ErrSignInDisabled
	case errors.Is(err, ErrProviderRateLimited):
		return ErrSendRateLimited
	default:
		return ErrProviderUnavailable
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
