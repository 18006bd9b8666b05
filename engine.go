package enrollflow

import (
	"context"

	"github.com/onvero/enrollflow/session"
)

// Engine defines a public type used by enrollflow APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	sessionStore *session.Store
	continuation *continuationStore
	sendLimiter  *sendLimiter
	attemptGuard *attemptGuard
	audit        *auditDispatcher
	metrics      *Metrics
	identity     IdentityProvider
	profiles     ProfileStore
	roles        RoleDirectory
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDropSummary describes the auditdropsummary operation and its observable behavior.
//
// AuditDropSummary may return an error when input validation, dependency calls, or security checks fail.
// AuditDropSummary does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropSummary() map[string]uint64 {
	if e == nil || e.audit == nil {
		return nil
	}
	return e.audit.DropSummary()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// SignOut describes the signout operation and its observable behavior.
//
// SignOut may return an error when input validation, dependency calls, or security checks fail.
// SignOut does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SignOut(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	browserCtx := browserContextFromContext(ctx)
	err := e.sessionStore.Delete(ctx, e.config.Sync.RecordName(), browserCtx)
	if err == nil {
		e.metricInc(MetricSignOut)
	}
	e.emitAudit(ctx, auditEventSignOut, err == nil, auditScope{}, err, func() map[string]string {
		return map[string]string{
			"browser_context": browserCtx,
		}
	})
	return err
}

// PublishedSession describes the publishedsession operation and its observable behavior.
//
// PublishedSession may return an error when input validation, dependency calls, or security checks fail.
// PublishedSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) PublishedSession(ctx context.Context) (*session.Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	return e.sessionStore.Get(ctx, e.config.Sync.RecordName(), browserContextFromContext(ctx))
}
