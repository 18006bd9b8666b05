package enrollflow

import (
	"context"
	"errors"
	"testing"

	"github.com/onvero/enrollflow/session"
)

func startedWizard(t *testing.T, env *testEnv) *Wizard {
	t.Helper()

	w := env.engine.NewWizard()
	if err := w.Start(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return w
}

func TestWizardFirstEnrollmentHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagSignup, testSession("u1"))

	w := startedWizard(t, env)
	if got := w.Snapshot().State; got != StateVerifyingIdentity {
		t.Fatalf("state after Start = %s", got)
	}

	if err := w.SubmitCode(ctx, "1234-5678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if got := w.Snapshot().State; got != StateCollectingSteps {
		t.Fatalf("state after verify = %s", got)
	}

	steps := map[FieldID]string{
		FieldFirstName:    "Ada",
		FieldLastName:     "Lovelace",
		FieldGender:       "f",
		FieldSocialHandle: "@ada",
	}
	for i := 0; i < len(steps); i++ {
		field, ok := w.CurrentStep()
		if !ok {
			t.Fatalf("no current step at index %d", i)
		}
		if err := w.SubmitField(ctx, steps[field]); err != nil {
			t.Fatalf("SubmitField(%s) failed: %v", field, err)
		}
	}

	snap := w.Snapshot()
	if snap.State != StateDone || !snap.Finalized {
		t.Fatalf("final snapshot = %+v", snap)
	}
	if snap.Destination != DestinationHome {
		t.Fatalf("destination = %s, want %s", snap.Destination, DestinationHome)
	}

	stored, err := env.profiles.GetProfile(ctx, "u1")
	if err != nil || stored == nil {
		t.Fatalf("profile lookup: %v, %v", stored, err)
	}
	if stored.FirstName != "Ada" || stored.SocialHandle != "@ada" {
		t.Fatalf("stored profile = %+v", stored)
	}

	published, err := env.engine.PublishedSession(ctx)
	if err != nil {
		t.Fatalf("published session: %v", err)
	}
	if published.UserID != "u1" {
		t.Fatalf("published user = %q", published.UserID)
	}
}

func TestWizardAutoFinalizesFullProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.profiles.profiles["u1"] = &ProfileRecord{
		UserID:       "u1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		BirthDate:    "1990-12-10",
		Gender:       "f",
		Phone:        "+4915112345",
		SocialHandle: "@ada",
	}
	env.profiles.enrollments["u1"] = 4
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	snap := w.Snapshot()
	if snap.State != StateDone {
		t.Fatalf("state = %s, want done without any steps", snap.State)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPlanAutoFinalized]; got != 1 {
		t.Fatalf("auto-finalize counter = %d, want 1", got)
	}
}

func TestWizardCodeRetryKeepsState(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := startedWizard(t, env)

	// Too short is rejected locally, never reaching the provider.
	if err := w.SubmitCode(ctx, "123"); !errors.Is(err, ErrCodeLength) {
		t.Fatalf("short code err = %v", err)
	}
	if env.provider.verifyCalls != 0 {
		t.Fatalf("provider verify calls = %d, want 0", env.provider.verifyCalls)
	}

	// A wrong code keeps the wizard waiting for another try.
	if err := w.SubmitCode(ctx, "12345678"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("invalid code err = %v", err)
	}
	if got := w.Snapshot().State; got != StateVerifyingIdentity {
		t.Fatalf("state after invalid code = %s", got)
	}

	env.provider.verifyOn(TagEmail, testSession("u1"))
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestWizardRateLimitEntersPasswordFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyFn = func(_, _ string, _ CodeTag) (*session.Session, error) {
		return nil, ErrProviderRateLimited
	}

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); !errors.Is(err, ErrSendRateLimited) {
		t.Fatalf("err = %v, want ErrSendRateLimited", err)
	}

	snap := w.Snapshot()
	if snap.State != StatePasswordFallback {
		t.Fatalf("state = %s, want password fallback", snap.State)
	}
	if snap.Identity != "ada@example.com" {
		t.Fatalf("identity lost across fallback: %q", snap.Identity)
	}
}

func TestWizardSendRateLimitEntersPasswordFallbackWithIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// The very first send is already rate limited; the fallback must still
	// carry the claim so the password path has an identity to sign in with.
	env.provider.sendFn = func(_, _ string) error {
		return ErrProviderRateLimited
	}

	var signedIn string
	env.provider.signInFn = func(identity, _ string) (*session.Session, error) {
		signedIn = identity
		return testSession("u1"), nil
	}

	w := env.engine.NewWizard()
	if err := w.Start(ctx, "Ada@Example.com"); !errors.Is(err, ErrSendRateLimited) {
		t.Fatalf("err = %v, want ErrSendRateLimited", err)
	}

	snap := w.Snapshot()
	if snap.State != StatePasswordFallback {
		t.Fatalf("state = %s, want password fallback", snap.State)
	}
	if snap.Identity != "ada@example.com" {
		t.Fatalf("identity lost across send-time fallback: %q", snap.Identity)
	}

	if err := w.SubmitPassword(ctx, "hunter22", ""); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if signedIn != "ada@example.com" {
		t.Fatalf("provider signed in %q, want the normalized claim", signedIn)
	}
}

func TestWizardFatalErrorParksRun(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyFn = func(_, _ string, _ CodeTag) (*session.Session, error) {
		return nil, ErrProviderUserNotFound
	}

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v", err)
	}
	if got := w.Snapshot().State; got != StateError {
		t.Fatalf("state = %s, want error", got)
	}
	if err := w.SubmitCode(ctx, "12345678"); !errors.Is(err, ErrWrongState) {
		t.Fatalf("post-error submit err = %v, want ErrWrongState", err)
	}
}

func TestWizardPasswordFallbackCreateAndSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyFn = func(_, _ string, _ CodeTag) (*session.Session, error) {
		return nil, ErrProviderRateLimited
	}

	notReady := 2
	env.provider.signInFn = func(_, _ string) (*session.Session, error) {
		if notReady > 0 {
			notReady--
			return nil, ErrProviderCredentialsNotReady
		}
		return testSession("u1"), nil
	}

	w := startedWizard(t, env)
	_ = w.SubmitCode(ctx, "12345678")

	if err := w.SubmitPassword(ctx, "hunter22", "hunter22"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if env.provider.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", env.provider.createCalls)
	}
	if env.provider.signInCalls != 3 {
		t.Fatalf("sign-in calls = %d, want 3 with two not-ready retries", env.provider.signInCalls)
	}
	if got := w.Snapshot().State; got != StateCollectingSteps {
		t.Fatalf("state after password success = %s", got)
	}
}

func TestWizardPasswordRetriesExhaustedParkRun(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyFn = func(_, _ string, _ CodeTag) (*session.Session, error) {
		return nil, ErrProviderRateLimited
	}
	env.provider.signInFn = func(_, _ string) (*session.Session, error) {
		return nil, ErrProviderCredentialsNotReady
	}

	w := startedWizard(t, env)
	_ = w.SubmitCode(ctx, "12345678")

	if err := w.SubmitPassword(ctx, "hunter22", "hunter22"); !errors.Is(err, ErrIdentityFatal) {
		t.Fatalf("err = %v, want ErrIdentityFatal after the retry budget", err)
	}
	if got := env.provider.signInCalls; got != defaultConfig().Password.SignInMaxAttempts {
		t.Fatalf("sign-in calls = %d, want the full retry budget", got)
	}
	if got := w.Snapshot().State; got != StateError {
		t.Fatalf("state = %s, a spent credential commit budget is terminal", got)
	}
}

func TestWizardPasswordPolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyFn = func(_, _ string, _ CodeTag) (*session.Session, error) {
		return nil, ErrProviderRateLimited
	}
	w := startedWizard(t, env)
	_ = w.SubmitCode(ctx, "12345678")

	if err := w.SubmitPassword(ctx, "short", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}
	if err := w.SubmitPassword(ctx, "hunter22", "hunter23"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("err = %v, want ErrPasswordMismatch", err)
	}
	if got := w.Snapshot().State; got != StatePasswordFallback {
		t.Fatalf("state = %s, fallback must survive validation errors", got)
	}
}

func TestWizardSkippedPhoneFinalizesWithoutDetour(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// A returning identity missing only the phone may skip it and still
	// finish; the completeness gate must not re-demand a skipped step.
	env.profiles.profiles["u1"] = &ProfileRecord{UserID: "u1",
		FirstName: "Ada", LastName: "Lovelace", BirthDate: "1990-12-10",
		Gender: "f", SocialHandle: "@ada"}
	env.profiles.enrollments["u1"] = 5
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	field, ok := w.CurrentStep()
	if !ok || field != FieldPhone {
		t.Fatalf("current step = %v %v, want phone", field, ok)
	}
	if err := w.SkipField(ctx); err != nil {
		t.Fatalf("SkipField failed: %v", err)
	}

	snap := w.Snapshot()
	if snap.State != StateDone {
		t.Fatalf("state after skip = %s, want done", snap.State)
	}
	if snap.Destination != DestinationHome {
		t.Fatalf("destination = %s", snap.Destination)
	}

	// The skipped field stays empty on the stored profile.
	stored, _ := env.profiles.GetProfile(ctx, "u1")
	if stored.Phone != "" {
		t.Fatalf("phone = %q, skip must leave the field empty", stored.Phone)
	}
}

func TestWizardSkipStillDetoursForOtherMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Here the detour is caused by fields that were never skipped: the
	// stored profile lacks name and birth date too.
	env.profiles.profiles["u1"] = &ProfileRecord{UserID: "u1"}
	env.profiles.enrollments["u1"] = 2
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if err := w.SkipField(ctx); !errors.Is(err, ErrBasicProfileIncomplete) {
		t.Fatalf("err = %v, want ErrBasicProfileIncomplete", err)
	}
	if got := w.Snapshot().State; got != StateAwaitingBasicProfile {
		t.Fatalf("state after skip = %s, want basic-profile detour", got)
	}

	// The detour form completes without the skipped phone.
	err := w.SubmitBasicProfile(ctx, map[FieldID]string{
		FieldFirstName: "Ada",
		FieldLastName:  "Lovelace",
		FieldBirthDate: "1990-12-10",
	})
	if err != nil {
		t.Fatalf("SubmitBasicProfile failed: %v", err)
	}
	if got := w.Snapshot().State; got != StateDone {
		t.Fatalf("state = %s, want done", got)
	}
}

func TestWizardSkipRejectedForMandatorySteps(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if err := w.SkipField(ctx); !errors.Is(err, ErrFieldNotSkippable) {
		t.Fatalf("err = %v, want ErrFieldNotSkippable", err)
	}

	field, _ := w.CurrentStep()
	if field != FieldFirstName {
		t.Fatalf("step advanced after rejected skip: %s", field)
	}
}

func TestWizardBackNavigation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if err := w.Back(); err != nil {
		t.Fatalf("Back at first step must be a no-op, got %v", err)
	}

	if err := w.SubmitField(ctx, "Ada"); err != nil {
		t.Fatalf("SubmitField failed: %v", err)
	}
	if field, _ := w.CurrentStep(); field != FieldLastName {
		t.Fatalf("step = %s, want last_name", field)
	}

	if err := w.Back(); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if field, _ := w.CurrentStep(); field != FieldFirstName {
		t.Fatalf("step after Back = %s, want first_name", field)
	}

	// Re-submitting overwrites the earlier value.
	if err := w.SubmitField(ctx, "Augusta"); err != nil {
		t.Fatalf("re-submit failed: %v", err)
	}
	if field, _ := w.CurrentStep(); field != FieldLastName {
		t.Fatalf("step = %s, want last_name", field)
	}
}

func TestWizardStepValidationKeepsPosition(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if err := w.SubmitField(ctx, "   "); !errors.Is(err, ErrFieldRequired) {
		t.Fatalf("blank submit err = %v", err)
	}
	if field, _ := w.CurrentStep(); field != FieldFirstName {
		t.Fatalf("step advanced after rejected value: %s", field)
	}
}

func TestWizardBasicProfileDetour(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Returning identity with a full progressive plan but a hole in the
	// basic profile (no birth date, no phone).
	env.profiles.profiles["u1"] = &ProfileRecord{
		UserID:       "u1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Gender:       "f",
		SocialHandle: "@ada",
	}
	env.profiles.enrollments["u1"] = 2
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if field, _ := w.CurrentStep(); field != FieldPhone {
		t.Fatalf("step = %s, want phone", field)
	}
	if err := w.SubmitField(ctx, "+4915112345"); !errors.Is(err, ErrBasicProfileIncomplete) {
		t.Fatalf("err = %v, want detour", err)
	}
	if got := w.Snapshot().State; got != StateAwaitingBasicProfile {
		t.Fatalf("state = %s", got)
	}

	// An underage birth date is rejected at the gate threshold.
	minor := "2015-01-01"
	err := w.SubmitBasicProfile(ctx, map[FieldID]string{FieldBirthDate: minor})
	if !errors.Is(err, ErrAgeOutOfRange) {
		t.Fatalf("minor birth date err = %v", err)
	}

	if err := w.SubmitBasicProfile(ctx, map[FieldID]string{FieldBirthDate: "1990-12-10"}); err != nil {
		t.Fatalf("SubmitBasicProfile failed: %v", err)
	}

	snap := w.Snapshot()
	if snap.State != StateDone || snap.Destination != DestinationHome {
		t.Fatalf("final snapshot = %+v", snap)
	}

	stored, _ := env.profiles.GetProfile(ctx, "u1")
	if stored.BirthDate != "1990-12-10" || stored.Phone != "+4915112345" {
		t.Fatalf("stored profile = %+v", stored)
	}
}

func TestWizardStaffSkipsBasicProfileGate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.profiles.profiles["u1"] = &ProfileRecord{
		UserID:       "u1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Gender:       "f",
		SocialHandle: "@ada",
		Phone:        "+4915112345",
	}
	env.profiles.enrollments["u1"] = 2
	env.roles.grant(RoleVenueStaff, "u1")
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	snap := w.Snapshot()
	if snap.State != StateDone {
		t.Fatalf("staff run state = %s, want done despite missing birth date", snap.State)
	}
	if snap.Destination != DestinationVenue {
		t.Fatalf("destination = %s", snap.Destination)
	}
}

func TestWizardFinalizeIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.profiles.profiles["u1"] = fullProfile("u1")
	env.profiles.enrollments["u1"] = 3
	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	raw1, err := env.engine.sessionStore.GetRaw(ctx, env.engine.config.Sync.RecordName(), "0")
	if err != nil {
		t.Fatalf("GetRaw failed: %v", err)
	}

	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("repeat Finalize failed: %v", err)
	}

	raw2, err := env.engine.sessionStore.GetRaw(ctx, env.engine.config.Sync.RecordName(), "0")
	if err != nil {
		t.Fatalf("GetRaw after repeat failed: %v", err)
	}
	if string(raw1) != string(raw2) {
		t.Fatal("repeated finalize changed the published record")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricFinalizeSuccess]; got != 1 {
		t.Fatalf("finalize success counter = %d, want 1", got)
	}
}

func TestWizardFinalizeRetriesAfterProfileWriteFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagEmail, testSession("u1"))

	w := startedWizard(t, env)
	if err := w.SubmitCode(ctx, "12345678"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	values := map[FieldID]string{
		FieldFirstName:    "Ada",
		FieldLastName:     "Lovelace",
		FieldGender:       "f",
		FieldSocialHandle: "@ada",
	}
	env.profiles.upsertErr = errors.New("store offline")

	var lastErr error
	for {
		field, ok := w.CurrentStep()
		if !ok {
			break
		}
		lastErr = w.SubmitField(ctx, values[field])
		if lastErr != nil {
			break
		}
	}
	if !errors.Is(lastErr, ErrProfileWriteFailed) {
		t.Fatalf("err = %v, want ErrProfileWriteFailed", lastErr)
	}
	if got := w.Snapshot().State; got != StateFinalizing {
		t.Fatalf("state = %s, want finalizing for retry", got)
	}

	env.profiles.upsertErr = nil
	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("retry Finalize failed: %v", err)
	}
	if got := w.Snapshot().State; got != StateDone {
		t.Fatalf("state = %s after retry", got)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricFinalizeFailure]; got != 1 {
		t.Fatalf("failure counter = %d, want 1", got)
	}
}

func TestWizardWrongStateCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := env.engine.NewWizard()

	if err := w.SubmitCode(ctx, "12345678"); !errors.Is(err, ErrWrongState) {
		t.Fatalf("SubmitCode err = %v", err)
	}
	if err := w.SubmitField(ctx, "x"); !errors.Is(err, ErrWrongState) {
		t.Fatalf("SubmitField err = %v", err)
	}
	if err := w.SubmitPassword(ctx, "hunter22", ""); !errors.Is(err, ErrWrongState) {
		t.Fatalf("SubmitPassword err = %v", err)
	}
	if err := w.Finalize(ctx); !errors.Is(err, ErrWrongState) {
		t.Fatalf("Finalize err = %v", err)
	}
	if err := w.OpenLink(ctx, "token"); !errors.Is(err, ErrWrongState) {
		t.Fatalf("OpenLink err = %v", err)
	}
}

func TestWizardOpenLinkSameContext(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagMagicLink, testSession("u1"))
	env.profiles.profiles["u1"] = fullProfile("u1")
	env.profiles.enrollments["u1"] = 3

	w := startedWizard(t, env)
	if err := w.OpenLink(ctx, "link-token"); err != nil {
		t.Fatalf("OpenLink failed: %v", err)
	}
	if got := w.Snapshot().State; got != StateDone {
		t.Fatalf("state = %s", got)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLinkExchangeSuccess]; got != 1 {
		t.Fatalf("link success counter = %d", got)
	}
}

func TestWizardOpenLinkCrossContextFallsBack(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Simulate the link landing in a browser context that never held the
	// continuation secret.
	other := startedWizard(t, env)
	other.mu.Lock()
	other.hasContinuationSecret = false
	other.mu.Unlock()

	if err := other.OpenLink(ctx, "link-token"); !errors.Is(err, ErrLinkCrossContext) {
		t.Fatalf("err = %v, want ErrLinkCrossContext", err)
	}
	if got := other.Snapshot().State; got != StatePasswordFallback {
		t.Fatalf("state = %s, want password fallback", got)
	}
}

func TestWizardOpenLinkConsumedRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.provider.verifyOn(TagMagicLink, testSession("u1"))
	env.profiles.profiles["u1"] = fullProfile("u1")
	env.profiles.enrollments["u1"] = 3

	w := startedWizard(t, env)
	if err := w.OpenLink(ctx, "link-token"); err != nil {
		t.Fatalf("first OpenLink failed: %v", err)
	}

	// A second wizard re-using the same (already consumed) record.
	second := env.engine.NewWizard()
	second.mu.Lock()
	second.state = StateVerifyingIdentity
	second.identity = "ada@example.com"
	second.hasContinuationSecret = true
	second.mu.Unlock()

	if err := second.OpenLink(ctx, "link-token"); !errors.Is(err, ErrLinkConsumed) {
		t.Fatalf("err = %v, want ErrLinkConsumed", err)
	}
}

func TestWizardResendInvalidatesPriorAttemptGuard(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := startedWizard(t, env)
	if err := w.Start(ctx, "ada@example.com"); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if env.provider.sendCalls != 2 {
		t.Fatalf("sends = %d, want 2", env.provider.sendCalls)
	}
}

func fullProfile(userID string) *ProfileRecord {
	return &ProfileRecord{
		UserID:       userID,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		BirthDate:    "1990-12-10",
		Gender:       "f",
		Phone:        "+4915112345",
		SocialHandle: "@ada",
	}
}
