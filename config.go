package enrollflow

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by enrollflow APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Broker   BrokerConfig
	Password PasswordConfig
	Gate     GateConfig
	Sync     SyncConfig
	Resolver ResolverConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
BROKER CONFIG
====================================
*/

// BrokerConfig defines a public type used by enrollflow APIs.
//
// BrokerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BrokerConfig struct {
	// CodeDigits is the fixed one-time code length. Shorter input is
	// rejected locally without a backend call.
	CodeDigits int
	// CodeTTL is the backend code validity window, reported for diagnostics.
	CodeTTL time.Duration
	// LinkTTL bounds how long a stored continuation secret stays exchangeable.
	LinkTTL time.Duration
	// CallTimeout bounds every individual provider call; expiry classifies
	// as a retryable failure, never left pending.
	CallTimeout time.Duration
	// PendingAttemptTTL bounds the in-flight attempt marker so a crashed
	// caller cannot wedge an identity claim.
	PendingAttemptTTL time.Duration
	// RedirectTarget is embedded in issued links.
	RedirectTarget string

	SendMaxAttempts  int
	SendWindow       time.Duration
	EnableIPThrottle bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by enrollflow APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	MinLength int
	// SignInMaxAttempts bounds sign-in retries while the backend has not yet
	// committed a freshly created secret. Backoff between attempt n and n+1
	// is n * SignInBackoffStep.
	SignInMaxAttempts int
	SignInBackoffStep time.Duration
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig defines a public type used by enrollflow APIs.
//
// GateConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GateConfig struct {
	// MinSignupAge applies to birth dates collected in the progressive flow.
	MinSignupAge int
	// MinBasicProfileAge applies to the basic-profile completeness gate.
	MinBasicProfileAge int
	MaxAge             int
}

/*
====================================
SYNC CONFIG
====================================
*/

// SyncConfig defines a public type used by enrollflow APIs.
//
// SyncConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SyncConfig struct {
	// ProjectRef is the backend project identifier. The published record
	// name is derived from it deterministically, so server-rendered readers
	// compute the same name without coordination.
	ProjectRef string
	// RedisPrefix namespaces the published session slots.
	RedisPrefix string
	// ConfirmRetryDelay is the fixed wait before the single post-publish
	// confirmation retry.
	ConfirmRetryDelay time.Duration
}

// RecordName returns the durable session record name derived from ProjectRef.
func (c SyncConfig) RecordName() string {
	return c.ProjectRef + "-auth-token"
}

/*
====================================
RESOLVER CONFIG
====================================
*/

// ResolverConfig defines a public type used by enrollflow APIs.
//
// ResolverConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResolverConfig struct {
	LookupTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by enrollflow APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by enrollflow APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. Callers still need to set
// Sync.ProjectRef before the config validates.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			CodeDigits:        8,
			CodeTTL:           60 * time.Second,
			LinkTTL:           15 * time.Minute,
			CallTimeout:       10 * time.Second,
			PendingAttemptTTL: 30 * time.Second,
			RedirectTarget:    "/",
			SendMaxAttempts:   5,
			SendWindow:        time.Hour,
			EnableIPThrottle:  true,
		},
		Password: PasswordConfig{
			MinLength:         6,
			SignInMaxAttempts: 5,
			SignInBackoffStep: time.Second,
		},
		Gate: GateConfig{
			MinSignupAge:       13,
			MinBasicProfileAge: 18,
			MaxAge:             120,
		},
		Sync: SyncConfig{
			RedisPrefix:       "efs",
			ConfirmRetryDelay: 250 * time.Millisecond,
		},
		Resolver: ResolverConfig{
			LookupTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the explicit clone point stays so a
	// future slice/map field cannot silently alias caller memory.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	// Broker
	if c.Broker.CodeDigits < 6 || c.Broker.CodeDigits > 10 {
		return errors.New("Broker CodeDigits must be between 6 and 10")
	}
	if c.Broker.CodeTTL <= 0 {
		return errors.New("Broker CodeTTL must be > 0")
	}
	if c.Broker.LinkTTL <= 0 {
		return errors.New("Broker LinkTTL must be > 0")
	}
	if c.Broker.CallTimeout <= 0 {
		return errors.New("Broker CallTimeout must be > 0")
	}
	if c.Broker.PendingAttemptTTL <= 0 {
		return errors.New("Broker PendingAttemptTTL must be > 0")
	}
	if c.Broker.SendMaxAttempts <= 0 {
		return errors.New("Broker SendMaxAttempts must be > 0")
	}
	if c.Broker.SendWindow <= 0 {
		return errors.New("Broker SendWindow must be > 0")
	}

	// Password
	if c.Password.MinLength < 6 {
		return errors.New("Password MinLength must be >= 6")
	}
	if c.Password.SignInMaxAttempts < 1 || c.Password.SignInMaxAttempts > 10 {
		return errors.New("Password SignInMaxAttempts must be between 1 and 10")
	}
	if c.Password.SignInBackoffStep <= 0 {
		return errors.New("Password SignInBackoffStep must be > 0")
	}

	// Gate
	if c.Gate.MinSignupAge < 0 || c.Gate.MinBasicProfileAge < 0 {
		return errors.New("Gate minimum ages must be >= 0")
	}
	if c.Gate.MaxAge <= c.Gate.MinSignupAge || c.Gate.MaxAge <= c.Gate.MinBasicProfileAge {
		return errors.New("Gate MaxAge must exceed both minimum ages")
	}

	// Sync
	if strings.TrimSpace(c.Sync.ProjectRef) == "" {
		return errors.New("Sync ProjectRef is required")
	}
	if strings.ContainsAny(c.Sync.ProjectRef, ": \t\n") {
		return errors.New("Sync ProjectRef must not contain separators or whitespace")
	}
	if c.Sync.RedisPrefix == "" {
		return errors.New("Sync RedisPrefix is required")
	}
	if c.Sync.ConfirmRetryDelay <= 0 {
		return errors.New("Sync ConfirmRetryDelay must be > 0")
	}

	// Resolver
	if c.Resolver.LookupTimeout <= 0 {
		return errors.New("Resolver LookupTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
