package internaldefs

import (
	enrollflow "github.com/onvero/enrollflow"
)

// CounterDef defines a public type used by enrollflow APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   enrollflow.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by enrollflow APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   enrollflow.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the enrollment engine.
var CounterDefs = []CounterDef{
	{ID: enrollflow.MetricCodeSendSuccess, Name: "enrollflow_code_send_success_total", Help: "Successful code or link sends."},
	{ID: enrollflow.MetricCodeSendRateLimited, Name: "enrollflow_code_send_rate_limited_total", Help: "Rate-limited code or link sends."},
	{ID: enrollflow.MetricCodeSendFailure, Name: "enrollflow_code_send_failure_total", Help: "Failed code or link sends."},
	{ID: enrollflow.MetricCodeVerifySuccess, Name: "enrollflow_code_verify_success_total", Help: "Successful code verifications."},
	{ID: enrollflow.MetricCodeVerifyExpired, Name: "enrollflow_code_verify_expired_total", Help: "Code verifications rejected as expired."},
	{ID: enrollflow.MetricCodeVerifyInvalid, Name: "enrollflow_code_verify_invalid_total", Help: "Code verifications rejected as invalid."},
	{ID: enrollflow.MetricCodeVerifyFatal, Name: "enrollflow_code_verify_fatal_total", Help: "Code verifications that failed permanently."},
	{ID: enrollflow.MetricCodeRejectedLocally, Name: "enrollflow_code_rejected_locally_total", Help: "Codes rejected before any provider call."},
	{ID: enrollflow.MetricLinkExchangeSuccess, Name: "enrollflow_link_exchange_success_total", Help: "Successful link exchanges."},
	{ID: enrollflow.MetricLinkFallback, Name: "enrollflow_link_fallback_total", Help: "Link exchanges diverted to the password fallback."},
	{ID: enrollflow.MetricPasswordFallbackEntered, Name: "enrollflow_password_fallback_entered_total", Help: "Runs that entered the password fallback."},
	{ID: enrollflow.MetricPasswordCreateSuccess, Name: "enrollflow_password_create_success_total", Help: "Successful password credential creations."},
	{ID: enrollflow.MetricPasswordSignInSuccess, Name: "enrollflow_password_sign_in_success_total", Help: "Successful password sign-ins."},
	{ID: enrollflow.MetricPasswordSignInRetry, Name: "enrollflow_password_sign_in_retry_total", Help: "Password sign-in retries while credentials were committing."},
	{ID: enrollflow.MetricPasswordSignInFailure, Name: "enrollflow_password_sign_in_failure_total", Help: "Failed password sign-ins."},
	{ID: enrollflow.MetricAttemptRejected, Name: "enrollflow_attempt_rejected_total", Help: "Verification attempts rejected while another was in flight."},
	{ID: enrollflow.MetricStepCompleted, Name: "enrollflow_step_completed_total", Help: "Completed enrollment steps."},
	{ID: enrollflow.MetricStepSkipped, Name: "enrollflow_step_skipped_total", Help: "Skipped enrollment steps."},
	{ID: enrollflow.MetricStepRejected, Name: "enrollflow_step_rejected_total", Help: "Step submissions rejected by validation."},
	{ID: enrollflow.MetricPlanAutoFinalized, Name: "enrollflow_plan_auto_finalized_total", Help: "Runs finalized immediately on an empty step plan."},
	{ID: enrollflow.MetricBasicProfileDetour, Name: "enrollflow_basic_profile_detour_total", Help: "Runs routed through the basic-profile detour."},
	{ID: enrollflow.MetricSessionPublished, Name: "enrollflow_session_published_total", Help: "Confirmed session publishes."},
	{ID: enrollflow.MetricSessionPublishRetried, Name: "enrollflow_session_publish_retried_total", Help: "Session publishes that needed the confirm retry."},
	{ID: enrollflow.MetricSessionPublishFailed, Name: "enrollflow_session_publish_failed_total", Help: "Failed session publishes."},
	{ID: enrollflow.MetricResolveOverride, Name: "enrollflow_resolve_override_total", Help: "Destination resolutions honoring a return-to override."},
	{ID: enrollflow.MetricResolveLookupError, Name: "enrollflow_resolve_lookup_error_total", Help: "Role source lookups skipped due to errors."},
	{ID: enrollflow.MetricFinalizeSuccess, Name: "enrollflow_finalize_success_total", Help: "Successfully finalized runs."},
	{ID: enrollflow.MetricFinalizeFailure, Name: "enrollflow_finalize_failure_total", Help: "Failed finalization attempts."},
	{ID: enrollflow.MetricSignOut, Name: "enrollflow_sign_out_total", Help: "Sign-out operations."},
}

// FinalizeLatency is the engine's only histogram; exporters address it
// directly instead of walking a def table.
var FinalizeLatency = HistogramDef{
	ID:   enrollflow.MetricFinalizeLatency,
	Name: "enrollflow_finalize_latency_seconds",
	Help: "Finalize latency histogram.",
}

// HistogramBounds is an exported constant or variable used by the enrollment engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
