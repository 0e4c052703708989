package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/httpapi"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/store"
	"github.com/MrEthical07/goSession/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu     sync.Mutex
	bodies []string
	fail   error
}

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_\-]+)`)

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies, "no mail sent")
	match := tokenPattern.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.Len(t, match, 2, "no token in mail body")
	return match[1]
}

type harness struct {
	srv    *httptest.Server
	store  *memory.Store
	mailer *captureMailer
	clock  *fakeClock
}

func testConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = bytes.Repeat([]byte("k"), 32)
	cfg.Tokens.LookupKey = bytes.Repeat([]byte("l"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(),
		mailer: &captureMailer{},
		clock:  &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	engine, err := goSession.New().
		WithConfig(testConfig()).
		WithStore(h.store).
		WithMailer(h.mailer).
		WithClock(h.clock.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	router := httpapi.NewRouter(engine, httpapi.Options{
		Registerer: prometheus.NewRegistry(),
	})
	h.srv = httptest.NewTLSServer(router)
	t.Cleanup(h.srv.Close)
	return h
}

// client returns a client with its own cookie jar.
func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Transport: h.srv.Client().Transport, Jar: jar}
}

func (h *harness) do(t *testing.T, c *http.Client, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (h *harness) register(t *testing.T, c *http.Client, email, pw string) {
	t.Helper()
	resp, _ := h.do(t, c, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
		"email":    email,
		"password": pw,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func cookieValue(resp *http.Response, name string) (string, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func userField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "response has no user: %v", body)
	return user[field]
}

func TestRegisterThenVerify(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	h.register(t, c, "Alice@Example.com", "correct horse")

	resp, body := h.do(t, c, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice@example.com", userField(t, body, "email"))
	assert.Equal(t, false, userField(t, body, "verified"))
	assert.Equal(t, "unverified", userField(t, body, "level"))

	// unverified users cannot change their password yet
	resp, _ = h.do(t, c, http.MethodPost, "/account/password", map[string]string{
		"old_password": "correct horse",
		"new_password": "battery staple",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	token := h.mailer.lastToken(t)
	resp, body = h.do(t, c, http.MethodGet, "/auth/verify?token="+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, userField(t, body, "verified"))

	resp, body = h.do(t, c, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user", userField(t, body, "level"))

	resp, _ = h.do(t, c, http.MethodPost, "/account/password", map[string]string{
		"old_password": "correct horse",
		"new_password": "battery staple",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// verification tokens are single use
	resp, body = h.do(t, c, http.MethodGet, "/auth/verify?token="+token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_token", body["error"])
}

func TestVerifyWithoutToken(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client(t), http.MethodGet, "/auth/verify", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing_token", body["error"])
}

func TestRegisterDuplicate(t *testing.T) {
	h := newHarness(t)
	h.register(t, h.client(t), "bob@example.com", "correct horse")

	resp, body := h.do(t, h.client(t), http.MethodPost, "/auth/register", map[string]string{
		"username": "bob2",
		"email":    " BOB@example.com",
		"password": "another password",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "account_exists", body["error"])
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	for name, body := range map[string]map[string]string{
		"short password": {"username": "c", "email": "c@example.com", "password": "short"},
		"bad email":      {"username": "c", "email": "not-an-email", "password": "long enough"},
		"no username":    {"username": "", "email": "c@example.com", "password": "long enough"},
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := h.do(t, h.client(t), http.MethodPost, "/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_input", out["error"])
		})
	}
}

func TestLoginFailureIsUniform(t *testing.T) {
	h := newHarness(t)
	h.register(t, h.client(t), "carol@example.com", "correct horse")

	unknownResp, unknown := h.do(t, h.client(t), http.MethodPost, "/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "correct horse",
	})
	wrongResp, wrong := h.do(t, h.client(t), http.MethodPost, "/auth/login", map[string]string{
		"email": "carol@example.com", "password": "wrong horse",
	})

	assert.Equal(t, http.StatusUnauthorized, unknownResp.StatusCode)
	assert.Equal(t, unknownResp.StatusCode, wrongResp.StatusCode)
	assert.Equal(t, unknown, wrong)
	_, ok := cookieValue(wrongResp, "access_token")
	assert.False(t, ok)
}

func TestRefreshRotationInvalidatesOldSecret(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.register(t, c, "dave@example.com", "correct horse")

	resp, _ := h.do(t, c, http.MethodPost, "/auth/login", map[string]string{
		"email": "dave@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	oldRefresh, ok := cookieValue(resp, "refresh_token")
	require.True(t, ok)

	// expire the access token; the next request must rotate
	h.clock.Advance(16 * time.Minute)

	resp, _ = h.do(t, c, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newRefresh, ok := cookieValue(resp, "refresh_token")
	require.True(t, ok, "refresh cookie not rotated")
	assert.NotEqual(t, oldRefresh, newRefresh)
	_, ok = cookieValue(resp, "access_token")
	assert.True(t, ok)

	// replaying the consumed secret yields an anonymous request
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/account", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: oldRefresh})
	replay, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	replay.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)

	cleared, ok := cookieValue(replay, "refresh_token")
	assert.True(t, ok, "stale refresh cookie should be cleared")
	assert.Empty(t, cleared)

	// the rotated session still works
	resp, _ = h.do(t, c, http.MethodGet, "/account", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.register(t, c, "erin@example.com", "correct horse")

	resp, _ := h.do(t, c, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, h.store.TokenCount(store.FamilyRefresh))

	resp, _ = h.do(t, c, http.MethodGet, "/account", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a second logout is harmless
	resp, _ = h.do(t, c, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGuards(t *testing.T) {
	h := newHarness(t)

	anon := h.client(t)
	resp, _ := h.do(t, anon, http.MethodGet, "/account", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, anon, http.MethodGet, "/admin/ping", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	user := h.client(t)
	h.register(t, user, "frank@example.com", "correct horse")
	resp, _ = h.do(t, user, http.MethodGet, "/admin/ping", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	hasher, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	hash, err := hasher.Hash("admin password")
	require.NoError(t, err)
	require.NoError(t, h.store.CreateUser(context.Background(), &store.User{
		ID:           "admin-1",
		Email:        "root@example.com",
		Username:     "root",
		PasswordHash: hash,
		Role:         store.RoleAdmin,
		CreatedAt:    h.clock.Now(),
	}))

	admin := h.client(t)
	resp, _ = h.do(t, admin, http.MethodPost, "/auth/login", map[string]string{
		"email": "root@example.com", "password": "admin password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, admin, http.MethodGet, "/admin/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin-1", body["user_id"])

	// resend is only for unverified accounts
	resp, _ = h.do(t, admin, http.MethodPost, "/auth/verify/resend", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestResendVerificationMailFailure(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	h.mailer.fail = errors.New("relay down")
	resp, body := h.do(t, c, http.MethodPost, "/auth/register", map[string]string{
		"username": "gina", "email": "gina@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["verification_sent"])

	resp, body = h.do(t, c, http.MethodPost, "/auth/verify/resend", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "mail_delivery_failed", body["error"])

	h.mailer.mu.Lock()
	h.mailer.fail = nil
	h.mailer.mu.Unlock()

	resp, _ = h.do(t, c, http.MethodPost, "/auth/verify/resend", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, h.mailer.lastToken(t))
}

func TestChangeUsernameAndEmail(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.register(t, c, "hank@example.com", "correct horse")

	resp, body := h.do(t, c, http.MethodPost, "/account/email", map[string]string{
		"email": "hank@example.org", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["error"])

	resp, body = h.do(t, c, http.MethodPost, "/account/email", map[string]string{
		"email": "hank@example.org", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hank@example.org", userField(t, body, "email"))

	resp, body = h.do(t, c, http.MethodGet, "/auth/verify?token="+h.mailer.lastToken(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, c, http.MethodPost, "/account/username", map[string]string{"username": "henry"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "henry", userField(t, body, "username"))
}

func TestMalformedJSON(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/auth/login", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSignInReplacesExistingSession(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.register(t, c, "erin@example.com", "correct horse")
	h.register(t, h.client(t), "frank@example.com", "battery staple")
	require.Equal(t, 2, h.store.TokenCount(store.FamilyRefresh))

	// erin's client signs in as frank: erin's refresh record is revoked
	resp, body := h.do(t, c, http.MethodPost, "/auth/login", map[string]string{
		"email": "frank@example.com", "password": "battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "frank@example.com", body["user"].(map[string]any)["email"])
	assert.Equal(t, 2, h.store.TokenCount(store.FamilyRefresh))

	// signing in again as the same user still leaves one record per client
	resp, _ = h.do(t, c, http.MethodPost, "/auth/login", map[string]string{
		"email": "frank@example.com", "password": "battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, h.store.TokenCount(store.FamilyRefresh))

	resp, body = h.do(t, c, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "frank@example.com", body["user"].(map[string]any)["email"])
}
