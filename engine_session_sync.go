package enrollflow

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/onvero/enrollflow/session"
)

// publishSession writes the session into the shared per-context slot and
// confirms the write by reading it back. One failed confirmation is retried
// after a fixed delay before the whole publish is reported as failed. The
// slot is overwritten in place, so re-publishing an identical session is
// byte-level idempotent.
func (e *Engine) publishSession(ctx context.Context, runID string, sess *session.Session) error {
	if sess == nil {
		return ErrSessionSyncFailed
	}

	sess.BackfillExpiry()

	recordName := e.config.Sync.RecordName()
	browserCtx := browserContextFromContext(ctx)
	scope := auditScope{runID: runID, userID: sess.UserID}

	expected, err := session.Encode(sess)
	if err != nil {
		e.metricInc(MetricSessionPublishFailed)
		e.emitAudit(ctx, auditEventSessionPublish, false, scope, ErrSessionSyncFailed, nil)
		return errors.Join(ErrSessionSyncFailed, err)
	}

	if err := e.sessionStore.Publish(ctx, recordName, browserCtx, sess); err != nil {
		e.metricInc(MetricSessionPublishFailed)
		e.emitAudit(ctx, auditEventSessionPublish, false, scope, ErrSessionSyncFailed, nil)
		return errors.Join(ErrSessionSyncFailed, err)
	}

	if e.confirmPublished(ctx, recordName, browserCtx, expected) {
		e.metricInc(MetricSessionPublished)
		e.emitAudit(ctx, auditEventSessionPublish, true, scope, nil, func() map[string]string {
			return map[string]string{"browser_context": browserCtx}
		})
		return nil
	}

	// A replica may serve the confirm read before the write lands. One
	// delayed retry covers the common propagation lag.
	e.metricInc(MetricSessionPublishRetried)
	if err := sleepContext(ctx, e.config.Sync.ConfirmRetryDelay); err != nil {
		e.metricInc(MetricSessionPublishFailed)
		e.emitAudit(ctx, auditEventSessionPublish, false, scope, ErrSessionSyncFailed, nil)
		return ErrSessionSyncFailed
	}

	if err := e.sessionStore.Publish(ctx, recordName, browserCtx, sess); err != nil {
		e.metricInc(MetricSessionPublishFailed)
		e.emitAudit(ctx, auditEventSessionPublish, false, scope, ErrSessionSyncFailed, nil)
		return errors.Join(ErrSessionSyncFailed, err)
	}

	if e.confirmPublished(ctx, recordName, browserCtx, expected) {
		e.metricInc(MetricSessionPublished)
		e.emitAudit(ctx, auditEventSessionPublish, true, scope, nil, func() map[string]string {
			return map[string]string{
				"browser_context": browserCtx,
				"retried":         "true",
			}
		})
		return nil
	}

	e.metricInc(MetricSessionPublishFailed)
	e.emitAudit(ctx, auditEventSessionPublish, false, scope, ErrSessionSyncFailed, nil)

	return ErrSessionSyncFailed
}

func (e *Engine) confirmPublished(ctx context.Context, recordName, contextID string, expected []byte) bool {
	stored, err := e.sessionStore.GetRaw(ctx, recordName, contextID)
	if err != nil {
		return false
	}
	return bytes.Equal(stored, expected)
}

// expiredSession reports whether a provider-issued session is already dead
// on arrival. A zero expiry means the session never expires.
func expiredSession(sess *session.Session) bool {
	return sess != nil && sess.Expired(time.Now())
}
