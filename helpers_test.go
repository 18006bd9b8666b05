package enrollflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/onvero/enrollflow/session"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

type fakeProvider struct {
	mu sync.Mutex

	sendFn   func(identity, redirect string) error
	verifyFn func(identity, code string, tag CodeTag) (*session.Session, error)
	signInFn func(identity, secret string) (*session.Session, error)
	createFn func(identity, secret string) (bool, error)

	sendCalls   int
	verifyCalls int
	signInCalls int
	createCalls int
	verifyTags  []CodeTag
}

func (p *fakeProvider) SendCodeOrLink(_ context.Context, identity, redirect string) error {
	p.mu.Lock()
	p.sendCalls++
	fn := p.sendFn
	p.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(identity, redirect)
}

func (p *fakeProvider) VerifyCode(_ context.Context, identity, code string, tag CodeTag) (*session.Session, error) {
	p.mu.Lock()
	p.verifyCalls++
	p.verifyTags = append(p.verifyTags, tag)
	fn := p.verifyFn
	p.mu.Unlock()

	if fn == nil {
		return nil, ErrProviderCodeInvalid
	}
	return fn(identity, code, tag)
}

func (p *fakeProvider) SignInPassword(_ context.Context, identity, secret string) (*session.Session, error) {
	p.mu.Lock()
	p.signInCalls++
	fn := p.signInFn
	p.mu.Unlock()

	if fn == nil {
		return nil, ErrProviderInvalidCredentials
	}
	return fn(identity, secret)
}

func (p *fakeProvider) CreateAccountPassword(_ context.Context, identity, secret string) (bool, error) {
	p.mu.Lock()
	p.createCalls++
	fn := p.createFn
	p.mu.Unlock()

	if fn == nil {
		return true, nil
	}
	return fn(identity, secret)
}

func (p *fakeProvider) tags() []CodeTag {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CodeTag, len(p.verifyTags))
	copy(out, p.verifyTags)
	return out
}

type fakeProfiles struct {
	mu sync.Mutex

	profiles    map[string]*ProfileRecord
	enrollments map[string]int

	getErr    error
	upsertErr error
	countErr  error

	upserts []map[FieldID]string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles:    make(map[string]*ProfileRecord),
		enrollments: make(map[string]int),
	}
}

func (s *fakeProfiles) GetProfile(_ context.Context, userID string) (*ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeProfiles) UpsertProfile(_ context.Context, userID string, fields map[FieldID]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return s.upsertErr
	}

	cp := make(map[FieldID]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.upserts = append(s.upserts, cp)

	p, ok := s.profiles[userID]
	if !ok {
		p = &ProfileRecord{UserID: userID}
		s.profiles[userID] = p
	}
	for id, value := range fields {
		switch id {
		case FieldFirstName:
			p.FirstName = value
		case FieldLastName:
			p.LastName = value
		case FieldBirthDate:
			p.BirthDate = value
		case FieldGender:
			p.Gender = value
		case FieldPhone:
			p.Phone = value
		case FieldSocialHandle:
			p.SocialHandle = value
		}
	}
	return nil
}

func (s *fakeProfiles) CountPriorEnrollments(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.enrollments[userID], nil
}

type fakeRoles struct {
	mu sync.Mutex

	membership map[RoleSource]map[string]bool
	errSources map[RoleSource]error
	queried    []RoleSource
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		membership: make(map[RoleSource]map[string]bool),
		errSources: make(map[RoleSource]error),
	}
}

func (d *fakeRoles) grant(source RoleSource, userID string) {
	if d.membership[source] == nil {
		d.membership[source] = make(map[string]bool)
	}
	d.membership[source][userID] = true
}

func (d *fakeRoles) ExistsIn(_ context.Context, source RoleSource, userID string) (bool, error) {
	d.mu.Lock()
	d.queried = append(d.queried, source)
	err := d.errSources[source]
	members := d.membership[source]
	d.mu.Unlock()

	if err != nil {
		return false, err
	}
	return members[userID], nil
}

type testEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	engine   *Engine
	provider *fakeProvider
	profiles *fakeProfiles
	roles    *fakeRoles
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Sync.ProjectRef = "evtapp"
	cfg.Sync.ConfirmRetryDelay = time.Millisecond
	cfg.Password.SignInBackoffStep = time.Millisecond
	cfg.Broker.RedirectTarget = "https://evtapp.test/welcome"
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithSink(t, nil, mutate)
}

// newTestEnvWithSink builds an engine around miniredis and in-memory fakes.
// Passing a sink enables the audit pipeline.
func newTestEnvWithSink(t *testing.T, sink AuditSink, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if sink != nil {
		cfg.Audit.Enabled = true
	}
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)

	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		provider: &fakeProvider{},
		profiles: newFakeProfiles(),
		roles:    newFakeRoles(),
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityProvider(env.provider).
		WithProfileStore(env.profiles).
		WithRoleDirectory(env.roles)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(engine.Close)

	return env
}

func testSession(userID string) *session.Session {
	return &session.Session{
		UserID:      userID,
		AccessToken: "access-" + userID,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

// verifyOn makes the provider accept any code under the given tag and reject
// every other tag as invalid.
func (p *fakeProvider) verifyOn(tag CodeTag, sess *session.Session) {
	p.verifyFn = func(_, _ string, got CodeTag) (*session.Session, error) {
		if got == tag {
			return sess, nil
		}
		return nil, ErrProviderCodeInvalid
	}
}
