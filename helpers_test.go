package goSession

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/secret"
	"github.com/MrEthical07/goSession/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = bytes.Repeat([]byte("s"), 32)
	cfg.Tokens.LookupKey = bytes.Repeat([]byte("k"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type envSettings struct {
	cfg      Config
	store    *memory.Store
	noMailer bool
	redis    redis.UniversalClient
	sink     AuditSink
}

type envOption func(*envSettings)

func withConfig(fn func(*Config)) envOption {
	return func(s *envSettings) { fn(&s.cfg) }
}

func withStore(st *memory.Store) envOption {
	return func(s *envSettings) { s.store = st }
}

func withoutMailer() envOption {
	return func(s *envSettings) { s.noMailer = true }
}

func withRedis(client redis.UniversalClient) envOption {
	return func(s *envSettings) { s.redis = client }
}

func withAudit(sink AuditSink) envOption {
	return func(s *envSettings) {
		s.sink = sink
		s.cfg.Audit.Enabled = true
		s.cfg.Audit.DropIfFull = false
	}
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	mailer *recordingMailer
	clock  *testClock
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	s := &envSettings{cfg: testConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = memory.New()
	}

	env := &testEnv{
		store:  s.store,
		mailer: &recordingMailer{},
		clock:  newTestClock(),
	}

	b := New().
		WithConfig(s.cfg).
		WithStore(s.store).
		WithClock(env.clock.Now)
	if !s.noMailer {
		b.WithMailer(env.mailer)
	}
	if s.redis != nil {
		b.WithRedis(s.redis)
	}
	if s.sink != nil {
		b.WithAuditSink(s.sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func (env *testEnv) register(t *testing.T, email, plain string) *User {
	t.Helper()
	user, err := env.engine.Register(context.Background(), "user", email, plain)
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return user
}

// login issues a session and returns the jar holding the new cookies.
func (env *testEnv) login(t *testing.T, ctx context.Context, user *User) *CookieJar {
	t.Helper()
	jar := NewCookieJar(nil)
	if _, err := env.engine.Login(ctx, jar, user, true); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return jar
}

// jarWith builds the jar of a follow-up request carrying the live cookies
// in pending.
func jarWith(pending ...*http.Cookie) *CookieJar {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range pending {
		if c == nil || c.MaxAge < 0 {
			continue
		}
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return NewCookieJar(r)
}

func pendingCookie(jar *CookieJar, name string) *http.Cookie {
	for _, c := range jar.Pending() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func lookupID(t *testing.T, cfg Config, raw string) string {
	t.Helper()
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	codec, err := secret.NewCodec(cfg.Tokens.LookupKey, hasher)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec.DeriveLookupID(raw)
}
