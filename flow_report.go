package enrollflow

import "time"

// FlowReport summarizes the effective runtime knobs of an engine for
// operator dashboards and startup logging.
type FlowReport struct {
	CodeDigits        int
	CodeTTL           time.Duration
	LinkTTL           time.Duration
	ProviderTimeout   time.Duration
	SendThrottle      SendThrottleReport
	PasswordMinLength int
	SignInMaxAttempts int
	MinSignupAge      int
	MinBasicAge       int
	MaxAge            int
	SessionRecordName string
	AuditActive       bool
	MetricsActive     bool
}

type SendThrottleReport struct {
	MaxAttempts int
	Window      time.Duration
	IPThrottle  bool
}

func (e *Engine) Report() FlowReport {
	if e == nil {
		return FlowReport{}
	}

	return FlowReport{
		CodeDigits:      e.config.Broker.CodeDigits,
		CodeTTL:         e.config.Broker.CodeTTL,
		LinkTTL:         e.config.Broker.LinkTTL,
		ProviderTimeout: e.config.Broker.CallTimeout,
		SendThrottle: SendThrottleReport{
			MaxAttempts: e.config.Broker.SendMaxAttempts,
			Window:      e.config.Broker.SendWindow,
			IPThrottle:  e.config.Broker.EnableIPThrottle,
		},
		PasswordMinLength: e.config.Password.MinLength,
		SignInMaxAttempts: e.config.Password.SignInMaxAttempts,
		MinSignupAge:      e.config.Gate.MinSignupAge,
		MinBasicAge:       e.config.Gate.MinBasicProfileAge,
		MaxAge:            e.config.Gate.MaxAge,
		SessionRecordName: e.config.Sync.RecordName(),
		AuditActive:       e.config.Audit.Enabled,
		MetricsActive:     e.config.Metrics.Enabled,
	}
}
