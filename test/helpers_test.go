//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	enrollflow "github.com/onvero/enrollflow"
	"github.com/onvero/enrollflow/session"
	"github.com/redis/go-redis/v9"
)

type memoryProvider struct {
	mu       sync.Mutex
	sessions map[string]*session.Session // identity -> session on verify
	sends    int
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{sessions: make(map[string]*session.Session)}
}

func (p *memoryProvider) accept(identity, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[identity] = &session.Session{
		UserID:      userID,
		AccessToken: "access-" + userID,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

func (p *memoryProvider) SendCodeOrLink(_ context.Context, _, _ string) error {
	p.mu.Lock()
	p.sends++
	p.mu.Unlock()
	return nil
}

func (p *memoryProvider) VerifyCode(_ context.Context, identity, _ string, tag enrollflow.CodeTag) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tag == enrollflow.TagEmail {
		if sess, ok := p.sessions[identity]; ok {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, enrollflow.ErrProviderCodeInvalid
}

func (p *memoryProvider) SignInPassword(_ context.Context, identity, _ string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sess, ok := p.sessions[identity]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, enrollflow.ErrProviderInvalidCredentials
}

func (p *memoryProvider) CreateAccountPassword(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

type memoryProfiles struct {
	mu          sync.Mutex
	records     map[string]*enrollflow.ProfileRecord
	enrollments map[string]int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{
		records:     make(map[string]*enrollflow.ProfileRecord),
		enrollments: make(map[string]int),
	}
}

func (s *memoryProfiles) GetProfile(_ context.Context, userID string) (*enrollflow.ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryProfiles) UpsertProfile(_ context.Context, userID string, fields map[enrollflow.FieldID]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &enrollflow.ProfileRecord{UserID: userID}
		s.records[userID] = rec
	}
	for id, value := range fields {
		switch id {
		case enrollflow.FieldFirstName:
			rec.FirstName = value
		case enrollflow.FieldLastName:
			rec.LastName = value
		case enrollflow.FieldBirthDate:
			rec.BirthDate = value
		case enrollflow.FieldGender:
			rec.Gender = value
		case enrollflow.FieldPhone:
			rec.Phone = value
		case enrollflow.FieldSocialHandle:
			rec.SocialHandle = value
		}
	}
	return nil
}

func (s *memoryProfiles) CountPriorEnrollments(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[userID], nil
}

type memoryRoles struct {
	mu      sync.Mutex
	members map[enrollflow.RoleSource]map[string]bool
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{members: make(map[enrollflow.RoleSource]map[string]bool)}
}

func (d *memoryRoles) grant(source enrollflow.RoleSource, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[source] == nil {
		d.members[source] = make(map[string]bool)
	}
	d.members[source][userID] = true
}

func (d *memoryRoles) ExistsIn(_ context.Context, source enrollflow.RoleSource, userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members[source][userID], nil
}

type integrationEnv struct {
	rdb      *redis.Client
	engine   *enrollflow.Engine
	provider *memoryProvider
	profiles *memoryProfiles
	roles    *memoryRoles
}

func integrationConfig() enrollflow.Config {
	cfg := enrollflow.Config{}
	cfg.Broker.CodeDigits = 8
	cfg.Broker.CodeTTL = time.Minute
	cfg.Broker.LinkTTL = 15 * time.Minute
	cfg.Broker.CallTimeout = 5 * time.Second
	cfg.Broker.PendingAttemptTTL = 30 * time.Second
	cfg.Broker.RedirectTarget = "https://evtapp.test/welcome"
	cfg.Broker.SendMaxAttempts = 10
	cfg.Broker.SendWindow = time.Hour
	cfg.Broker.EnableIPThrottle = true
	cfg.Password.MinLength = 6
	cfg.Password.SignInMaxAttempts = 3
	cfg.Password.SignInBackoffStep = time.Millisecond
	cfg.Gate.MinSignupAge = 13
	cfg.Gate.MinBasicProfileAge = 18
	cfg.Gate.MaxAge = 120
	cfg.Sync.ProjectRef = "evtapp"
	cfg.Sync.RedisPrefix = "efs"
	cfg.Sync.ConfirmRetryDelay = time.Millisecond
	cfg.Resolver.LookupTimeout = 5 * time.Second
	cfg.Metrics.Enabled = true
	return cfg
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	env := &integrationEnv{
		rdb:      rdb,
		provider: newMemoryProvider(),
		profiles: newMemoryProfiles(),
		roles:    newMemoryRoles(),
	}

	engine, err := enrollflow.New().
		WithConfig(integrationConfig()).
		WithRedis(rdb).
		WithIdentityProvider(env.provider).
		WithProfileStore(env.profiles).
		WithRoleDirectory(env.roles).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine
	t.Cleanup(engine.Close)

	return env
}
