package enrollflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onvero/enrollflow/internal"
	"github.com/onvero/enrollflow/session"
)

// Wizard drives one enrollment run through identity verification,
// progressive step collection, and finalization. A Wizard is safe for
// concurrent use, but it models a single user flow; callers normally hold
// one wizard per signup surface.
//
// Wizard instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Wizard struct {
	mu     sync.Mutex
	engine *Engine
	runID  string

	state    WizardState
	identity string

	continuationSecret    [32]byte
	hasContinuationSecret bool

	sess             *session.Session
	profile          *ProfileRecord
	priorEnrollments int

	plan      []planStep
	planIndex int
	pending   map[FieldID]string
	skipped   map[FieldID]bool

	lastErr     error
	finalized   bool
	destination Destination
}

// NewWizard describes the newwizard operation and its observable behavior.
//
// NewWizard may return an error when input validation, dependency calls, or security checks fail.
// NewWizard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) NewWizard() *Wizard {
	return &Wizard{
		engine:  e,
		runID:   uuid.NewString(),
		state:   StateAwaitingIdentity,
		pending: make(map[FieldID]string),
		skipped: make(map[FieldID]bool),
	}
}

// RunID describes the runid operation and its observable behavior.
func (w *Wizard) RunID() string {
	return w.runID
}

// Start describes the start operation and its observable behavior.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Start(ctx context.Context, identity string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Start is also the resend path, so a run already waiting on a code may
	// request a fresh one.
	if w.state != StateAwaitingIdentity && w.state != StateVerifyingIdentity {
		return w.reject(ErrWrongState)
	}

	// The claim is recorded before the send so a fallback-triggering send
	// failure still carries the email into the password path.
	w.identity = strings.TrimSpace(strings.ToLower(identity))

	secret, err := w.engine.sendCodeOrLink(ctx, w.runID, w.identity)
	if err != nil {
		return w.fail(ctx, err)
	}

	w.continuationSecret = secret
	w.hasContinuationSecret = true
	w.state = StateVerifyingIdentity
	w.lastErr = nil

	return nil
}

// SubmitCode describes the submitcode operation and its observable behavior.
//
// SubmitCode may return an error when input validation, dependency calls, or security checks fail.
// SubmitCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) SubmitCode(ctx context.Context, raw string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateVerifyingIdentity {
		return w.reject(ErrWrongState)
	}

	code, err := sanitizeCode(raw, w.engine.config.Broker.CodeDigits)
	if err != nil {
		w.engine.metricInc(MetricCodeRejectedLocally)
		w.lastErr = err
		return err
	}

	sess, err := w.engine.attemptCode(ctx, w.runID, w.identity, code)
	if err != nil {
		return w.fail(ctx, err)
	}

	// The code proved possession, so the continuation record is spent.
	_ = w.engine.continuation.Clear(ctx, internal.ClaimKey(w.identity))
	w.hasContinuationSecret = false

	return w.postVerify(ctx, sess)
}

// OpenLink describes the openlink operation and its observable behavior.
//
// OpenLink may return an error when input validation, dependency calls, or security checks fail.
// OpenLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) OpenLink(ctx context.Context, linkToken string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateVerifyingIdentity {
		return w.reject(ErrWrongState)
	}

	scope := auditScope{runID: w.runID, identity: w.identity, strategy: StrategyLink.String()}

	// A link opened in a browser that never held the continuation secret was
	// opened outside the originating context.
	if !w.hasContinuationSecret {
		w.engine.metricInc(MetricLinkFallback)
		w.engine.emitAudit(ctx, auditEventLinkExchange, false, scope, ErrLinkCrossContext, nil)
		return w.fail(ctx, ErrLinkCrossContext)
	}

	claimKey := internal.ClaimKey(w.identity)
	_, err := w.engine.continuation.Consume(ctx, claimKey, internal.HashContinuationSecret(w.continuationSecret))
	if err != nil {
		w.hasContinuationSecret = false
		switch {
		case errors.Is(err, errContinuationNotFound):
			w.engine.metricInc(MetricLinkFallback)
			w.engine.emitAudit(ctx, auditEventLinkExchange, false, scope, ErrLinkConsumed, nil)
			return w.fail(ctx, ErrLinkConsumed)
		case errors.Is(err, errContinuationSecretMismatch):
			w.engine.metricInc(MetricLinkFallback)
			w.engine.emitAudit(ctx, auditEventLinkExchange, false, scope, ErrLinkCrossContext, nil)
			return w.fail(ctx, ErrLinkCrossContext)
		default:
			w.engine.emitAudit(ctx, auditEventLinkExchange, false, scope, ErrProviderUnavailable, nil)
			return w.fail(ctx, ErrProviderUnavailable)
		}
	}
	w.hasContinuationSecret = false

	cctx, cancel := w.engine.providerCall(ctx)
	sess, err := w.engine.identity.VerifyCode(cctx, w.identity, linkToken, TagMagicLink)
	cancel()
	if err != nil {
		mapped := mapLinkProviderError(err)
		w.engine.metricInc(MetricLinkFallback)
		w.engine.emitAudit(ctx, auditEventLinkExchange, false, scope, mapped, nil)
		return w.fail(ctx, mapped)
	}

	w.engine.metricInc(MetricLinkExchangeSuccess)
	w.engine.emitAudit(ctx, auditEventLinkExchange, true, scope, nil, nil)

	return w.postVerify(ctx, sess)
}

// SubmitPassword describes the submitpassword operation and its observable behavior.
//
// SubmitPassword may return an error when input validation, dependency calls, or security checks fail.
// SubmitPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An empty confirm signs in against an existing credential; a non-empty
// confirm creates the credential first and then signs in.
func (w *Wizard) SubmitPassword(ctx context.Context, secret, confirm string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StatePasswordFallback {
		return w.reject(ErrWrongState)
	}

	var (
		sess *session.Session
		err  error
	)

	if confirm == "" {
		sess, err = w.engine.signInPassword(ctx, w.runID, w.identity, secret)
	} else {
		sess, err = w.engine.createAndSignInPassword(ctx, w.runID, w.identity, secret, confirm)
	}
	if err != nil {
		return w.fail(ctx, err)
	}

	return w.postVerify(ctx, sess)
}

// postVerify runs after any strategy produced a session: it loads or creates
// the profile, builds the step plan, and either starts collection or
// finalizes immediately when nothing is missing.
func (w *Wizard) postVerify(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.UserID == "" || expiredSession(sess) {
		return w.fail(ctx, ErrIdentityFatal)
	}

	w.sess = sess

	profile, err := w.engine.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return w.fail(ctx, ErrProviderUnavailable)
	}
	if profile == nil {
		// First verification ever: materialize an empty profile row so the
		// rest of the run only deals in updates.
		if err := w.engine.profiles.UpsertProfile(ctx, sess.UserID, map[FieldID]string{}); err != nil {
			return w.fail(ctx, ErrProfileWriteFailed)
		}
		profile = &ProfileRecord{}
	}
	w.profile = profile

	count, err := w.engine.profiles.CountPriorEnrollments(ctx, sess.UserID)
	if err != nil {
		return w.fail(ctx, ErrProviderUnavailable)
	}
	w.priorEnrollments = count

	w.plan = planSteps(profile, count)
	w.planIndex = 0
	w.lastErr = nil

	if len(w.plan) == 0 {
		w.engine.metricInc(MetricPlanAutoFinalized)
		w.state = StateFinalizing
		return w.finalize(ctx)
	}

	w.state = StateCollectingSteps
	return nil
}

// CurrentStep describes the currentstep operation and its observable behavior.
func (w *Wizard) CurrentStep() (FieldID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCollectingSteps || w.planIndex >= len(w.plan) {
		return "", false
	}
	return w.plan[w.planIndex].field, true
}

// SubmitField describes the submitfield operation and its observable behavior.
//
// SubmitField may return an error when input validation, dependency calls, or security checks fail.
// SubmitField does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) SubmitField(ctx context.Context, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCollectingSteps || w.planIndex >= len(w.plan) {
		return w.reject(ErrWrongState)
	}

	step := w.plan[w.planIndex]
	scope := auditScope{runID: w.runID, userID: w.sess.UserID, step: step.field}

	if err := w.engine.validateField(step.field, value); err != nil {
		w.engine.metricInc(MetricStepRejected)
		w.engine.emitAudit(ctx, auditEventStepSubmit, false, scope, err, nil)
		w.lastErr = err
		return err
	}

	w.pending[step.field] = strings.TrimSpace(value)
	delete(w.skipped, step.field)
	w.engine.metricInc(MetricStepCompleted)
	w.engine.emitAudit(ctx, auditEventStepSubmit, true, scope, nil, nil)
	w.lastErr = nil

	return w.advance(ctx)
}

// SkipField describes the skipfield operation and its observable behavior.
//
// SkipField may return an error when input validation, dependency calls, or security checks fail.
// SkipField does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) SkipField(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCollectingSteps || w.planIndex >= len(w.plan) {
		return w.reject(ErrWrongState)
	}

	step := w.plan[w.planIndex]
	scope := auditScope{runID: w.runID, userID: w.sess.UserID, step: step.field}

	if !step.skippable {
		w.engine.emitAudit(ctx, auditEventStepSkip, false, scope, ErrFieldNotSkippable, nil)
		w.lastErr = ErrFieldNotSkippable
		return ErrFieldNotSkippable
	}

	delete(w.pending, step.field)
	w.skipped[step.field] = true
	w.engine.metricInc(MetricStepSkipped)
	w.engine.emitAudit(ctx, auditEventStepSkip, true, scope, nil, nil)
	w.lastErr = nil

	return w.advance(ctx)
}

// Back describes the back operation and its observable behavior.
//
// Back may return an error when input validation, dependency calls, or security checks fail.
// Back does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCollectingSteps {
		return w.reject(ErrWrongState)
	}
	if w.planIndex == 0 {
		return nil
	}

	w.planIndex--
	w.lastErr = nil
	return nil
}

func (w *Wizard) advance(ctx context.Context) error {
	w.planIndex++
	if w.planIndex < len(w.plan) {
		return nil
	}

	w.state = StateFinalizing
	return w.finalize(ctx)
}

// SubmitBasicProfile describes the submitbasicprofile operation and its observable behavior.
//
// SubmitBasicProfile may return an error when input validation, dependency calls, or security checks fail.
// SubmitBasicProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) SubmitBasicProfile(ctx context.Context, fields map[FieldID]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateAwaitingBasicProfile {
		return w.reject(ErrWrongState)
	}

	scope := auditScope{runID: w.runID, userID: w.sess.UserID}

	for id, value := range fields {
		var err error
		switch id {
		case FieldBirthDate:
			_, err = w.engine.validateBirthDate(value, w.engine.config.Gate.MinBasicProfileAge)
		case FieldFirstName, FieldLastName, FieldPhone:
			err = w.engine.validateField(id, value)
		default:
			err = ErrStepUnknown
		}
		if err != nil {
			w.engine.emitAudit(ctx, auditEventBasicProfile, false, scope, err, nil)
			w.lastErr = err
			return err
		}
	}

	for id, value := range fields {
		w.pending[id] = strings.TrimSpace(value)
	}

	if !basicProfileComplete(w.profile, w.pending, w.skipped) {
		w.engine.emitAudit(ctx, auditEventBasicProfile, false, scope, ErrBasicProfileIncomplete, nil)
		w.lastErr = ErrBasicProfileIncomplete
		return ErrBasicProfileIncomplete
	}

	w.engine.emitAudit(ctx, auditEventBasicProfile, true, scope, nil, nil)
	w.state = StateFinalizing
	return w.finalize(ctx)
}

// Finalize describes the finalize operation and its observable behavior.
//
// Finalize may return an error when input validation, dependency calls, or security checks fail.
// Finalize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateDone && w.finalized {
		return nil
	}
	if w.state != StateFinalizing {
		return w.reject(ErrWrongState)
	}
	return w.finalize(ctx)
}

// finalize commits the run: pending fields are persisted, the destination is
// resolved, the basic-profile gate is applied, and the session is published.
// Failures leave the wizard in StateFinalizing so the caller can retry.
func (w *Wizard) finalize(ctx context.Context) error {
	scope := auditScope{runID: w.runID, userID: w.sess.UserID, identity: w.identity}

	var start time.Time
	if w.engine.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			w.engine.metrics.Observe(MetricFinalizeLatency, time.Since(start))
		}()
	}

	if len(w.pending) > 0 {
		if err := w.engine.profiles.UpsertProfile(ctx, w.sess.UserID, w.pending); err != nil {
			w.engine.metricInc(MetricFinalizeFailure)
			w.engine.emitAudit(ctx, auditEventFinalize, false, scope, ErrProfileWriteFailed, nil)
			w.lastErr = ErrProfileWriteFailed
			return ErrProfileWriteFailed
		}
		for id, value := range w.pending {
			w.applyToProfile(id, value)
		}
		w.pending = make(map[FieldID]string)
	}

	dest := w.engine.resolveDestination(ctx, w.runID, w.sess.UserID)

	// Returning identities heading to a public surface must carry a complete
	// basic profile before the run may finish. Staff surfaces collect their
	// identity data through their own onboarding.
	if w.priorEnrollments >= 1 && !dest.Staff() && !basicProfileComplete(w.profile, nil, w.skipped) {
		w.engine.metricInc(MetricBasicProfileDetour)
		w.state = StateAwaitingBasicProfile
		w.lastErr = ErrBasicProfileIncomplete
		return ErrBasicProfileIncomplete
	}

	if err := w.engine.publishSession(ctx, w.runID, w.sess); err != nil {
		w.engine.metricInc(MetricFinalizeFailure)
		w.engine.emitAudit(ctx, auditEventFinalize, false, scope, ErrSessionSyncFailed, nil)
		w.lastErr = ErrSessionSyncFailed
		return ErrSessionSyncFailed
	}

	w.destination = dest
	w.finalized = true
	w.state = StateDone
	w.lastErr = nil

	w.engine.metricInc(MetricFinalizeSuccess)
	w.engine.emitAudit(ctx, auditEventFinalize, true, scope, nil, func() map[string]string {
		return map[string]string{"destination": string(dest)}
	})

	return nil
}

func (w *Wizard) applyToProfile(id FieldID, value string) {
	if w.profile == nil {
		w.profile = &ProfileRecord{}
	}
	switch id {
	case FieldFirstName:
		w.profile.FirstName = value
	case FieldLastName:
		w.profile.LastName = value
	case FieldBirthDate:
		w.profile.BirthDate = value
	case FieldGender:
		w.profile.Gender = value
	case FieldPhone:
		w.profile.Phone = value
	case FieldSocialHandle:
		w.profile.SocialHandle = value
	}
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Snapshot() WizardSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := WizardSnapshot{
		RunID:       w.runID,
		State:       w.state,
		Identity:    w.identity,
		LastError:   w.lastErr,
		Finalized:   w.finalized,
		Destination: w.destination,
	}

	if w.state == StateCollectingSteps && w.planIndex < len(w.plan) {
		snap.CurrentStep = w.plan[w.planIndex].field
		remaining := make([]FieldID, 0, len(w.plan)-w.planIndex)
		for _, step := range w.plan[w.planIndex:] {
			remaining = append(remaining, step.field)
		}
		snap.RemainingSteps = remaining
	}

	return snap
}

// reject records a protocol violation without changing wizard state.
func (w *Wizard) reject(err error) error {
	w.lastErr = err
	return err
}

// fail classifies err and moves the wizard accordingly: fallback-class
// failures enter the password path with the identity preserved, fatal-class
// failures park the run in StateError, and everything else leaves the state
// unchanged for a retry.
func (w *Wizard) fail(ctx context.Context, err error) error {
	w.lastErr = err

	switch classifyFailure(err) {
	case classFallback:
		w.enterPasswordFallback(ctx)
	case classFatal:
		w.state = StateError
	}

	return err
}

func (w *Wizard) enterPasswordFallback(ctx context.Context) {
	if w.state == StatePasswordFallback {
		return
	}
	w.state = StatePasswordFallback
	w.engine.metricInc(MetricPasswordFallbackEntered)
	w.engine.emitAudit(ctx, auditEventPasswordFallback, true, auditScope{
		runID:    w.runID,
		identity: w.identity,
		strategy: StrategyPassword.String(),
	}, nil, nil)
}

func mapLinkProviderError(err error) error {
	switch {
	case errors.Is(err, ErrProviderCodeExpired), errors.Is(err, ErrProviderCodeInvalid):
		return ErrLinkConsumed
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
