package enrollflow

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by enrollflow APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricCodeSendSuccess is an exported constant or variable used by the enrollment engine.
	MetricCodeSendSuccess MetricID = iota
	// MetricCodeSendRateLimited is an exported constant or variable used by the enrollment engine.
	MetricCodeSendRateLimited
	// MetricCodeSendFailure is an exported constant or variable used by the enrollment engine.
	MetricCodeSendFailure
	// MetricCodeVerifySuccess is an exported constant or variable used by the enrollment engine.
	MetricCodeVerifySuccess
	// MetricCodeVerifyExpired is an exported constant or variable used by the enrollment engine.
	MetricCodeVerifyExpired
	// MetricCodeVerifyInvalid is an exported constant or variable used by the enrollment engine.
	MetricCodeVerifyInvalid
	// MetricCodeVerifyFatal is an exported constant or variable used by the enrollment engine.
	MetricCodeVerifyFatal
	// MetricCodeRejectedLocally is an exported constant or variable used by the enrollment engine.
	MetricCodeRejectedLocally
	// MetricLinkExchangeSuccess is an exported constant or variable used by the enrollment engine.
	MetricLinkExchangeSuccess
	// MetricLinkFallback is an exported constant or variable used by the enrollment engine.
	MetricLinkFallback
	// MetricPasswordFallbackEntered is an exported constant or variable used by the enrollment engine.
	MetricPasswordFallbackEntered
	// MetricPasswordCreateSuccess is an exported constant or variable used by the enrollment engine.
	MetricPasswordCreateSuccess
	// MetricPasswordSignInSuccess is an exported constant or variable used by the enrollment engine.
	MetricPasswordSignInSuccess
	// MetricPasswordSignInRetry is an exported constant or variable used by the enrollment engine.
	MetricPasswordSignInRetry
	// MetricPasswordSignInFailure is an exported constant or variable used by the enrollment engine.
	MetricPasswordSignInFailure
	// MetricAttemptRejected is an exported constant or variable used by the enrollment engine.
	MetricAttemptRejected
	// MetricStepCompleted is an exported constant or variable used by the enrollment engine.
	MetricStepCompleted
	// MetricStepSkipped is an exported constant or variable used by the enrollment engine.
	MetricStepSkipped
	// MetricStepRejected is an exported constant or variable used by the enrollment engine.
	MetricStepRejected
	// MetricPlanAutoFinalized is an exported constant or variable used by the enrollment engine.
	MetricPlanAutoFinalized
	// MetricBasicProfileDetour is an exported constant or variable used by the enrollment engine.
	MetricBasicProfileDetour
	// MetricSessionPublished is an exported constant or variable used by the enrollment engine.
	MetricSessionPublished
	// MetricSessionPublishRetried is an exported constant or variable used by the enrollment engine.
	MetricSessionPublishRetried
	// MetricSessionPublishFailed is an exported constant or variable used by the enrollment engine.
	MetricSessionPublishFailed
	// MetricResolveOverride is an exported constant or variable used by the enrollment engine.
	MetricResolveOverride
	// MetricResolveLookupError is an exported constant or variable used by the enrollment engine.
	MetricResolveLookupError
	// MetricFinalizeSuccess is an exported constant or variable used by the enrollment engine.
	MetricFinalizeSuccess
	// MetricFinalizeFailure is an exported constant or variable used by the enrollment engine.
	MetricFinalizeFailure
	// MetricSignOut is an exported constant or variable used by the enrollment engine.
	MetricSignOut
	// MetricFinalizeLatency is an exported constant or variable used by the enrollment engine.
	MetricFinalizeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by enrollflow APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by enrollflow APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics may return an error when input validation, dependency calls, or security checks fail.
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled describes the latencyenabled operation and its observable behavior.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
//
// Observe may return an error when input validation, dependency calls, or security checks fail.
// Observe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricFinalizeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricFinalizeLatency].buckets[i])
		}
		s.Histograms[MetricFinalizeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
