package web

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/email"
	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/adapters/http/perf"
	"crewportal/internal/adapters/storage"
	"crewportal/internal/adapters/storage/devicestate"
	feedbackStore "crewportal/internal/adapters/storage/feedback"
	"crewportal/internal/application/crewcache"
	"crewportal/internal/config"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/flight"
	"crewportal/internal/domain/session"
)

// fakeAPI is an in-memory crew API. Every field is guarded by mu because
// handlers run on the test server's goroutines.
type fakeAPI struct {
	mu sync.Mutex

	errs     map[string]error
	exists   bool
	nextStep string
	members  map[string]*crew.Member
	flight   flight.Flight
	calls    []string
	saved    map[crew.Section]map[string]string
	// passwordSetFor records each username given to SetPassword.
	passwordSetFor []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		errs:    map[string]error{},
		members: map[string]*crew.Member{},
		saved:   map[crew.Section]map[string]string{},
	}
}

func (f *fakeAPI) set(fn func(*fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) call(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	return f.errs[endpoint]
}

func (f *fakeAPI) called(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

func (f *fakeAPI) RegisterStart(_ context.Context, _ crewapi.RegisterRequest) error {
	return f.call(crewapi.EndpointRegisterStart)
}

func (f *fakeAPI) SetPassword(_ context.Context, username, _ string) error {
	if err := f.call(crewapi.EndpointSetPassword); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordSetFor = append(f.passwordSetFor, username)
	return nil
}

func (f *fakeAPI) Login(_ context.Context, creds crewapi.Credentials) (crewapi.LoginResult, error) {
	if err := f.call(crewapi.EndpointLogin); err != nil {
		return crewapi.LoginResult{}, err
	}
	return crewapi.LoginResult{
		AccessToken:  "access-" + creds.Username,
		RefreshToken: "refresh-" + creds.Username,
		User:         session.NewUser(creds.Username),
	}, nil
}

func (f *fakeAPI) CrewExists(_ context.Context, _, _ string) (bool, error) {
	if err := f.call(crewapi.EndpointCrewExists); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, nil
}

func (f *fakeAPI) MemberStatus(_ context.Context, _, _ string) (string, error) {
	if err := f.call(crewapi.EndpointMemberStatus); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextStep, nil
}

func (f *fakeAPI) FetchProfile(_ context.Context, _, psn string) (*crew.Member, error) {
	if err := f.call(crewapi.EndpointFetchProfile); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[psn], nil
}

func (f *fakeAPI) SaveProfile(_ context.Context, _, _ string, section crew.Section, record map[string]string) error {
	if err := f.call(crewapi.EndpointSaveProfile + string(section)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[section] = record
	return nil
}

func (f *fakeAPI) NextFlight(ctx context.Context, _, _ string) (flight.Flight, error) {
	if err := f.call(crewapi.EndpointNextFlight); err != nil {
		return flight.Flight{}, err
	}
	if err := ctx.Err(); err != nil {
		return flight.Flight{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flight, nil
}

// fakeSender records every email.
type fakeSender struct {
	mu   sync.Mutex
	sent []email.SendRequest
}

func (s *fakeSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return email.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// testEnv is a portal wired to in-memory SQLite and a fake crew API.
type testEnv struct {
	server *Server
	api    *fakeAPI
	device devicestate.Store
	sender *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db))

	cfg := config.Default()
	cfg.Server.RateLimitPerSecond = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Email.FeedbackTo = "portal-feedback@example.com"

	env := &testEnv{
		api:    newFakeAPI(),
		device: devicestate.NewSQLiteStore(db),
		sender: &fakeSender{},
	}
	env.server, err = NewServer(cfg, Deps{
		API:       env.api,
		Device:    env.device,
		Feedback:  feedbackStore.NewSQLiteStore(db),
		Sender:    env.sender,
		Collector: perf.NewCollector(100),
	})
	require.NoError(t, err)
	return env
}

// request builds a request carrying tab and device as the middleware would.
func (e *testEnv) request(method, target string, body io.Reader, tab *middleware.Tab) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	ctx := middleware.ContextWithDevice(req.Context(), testDevice)
	ctx = middleware.ContextWithTab(ctx, tab)
	return req.WithContext(ctx)
}

func (e *testEnv) newTab() *middleware.Tab {
	return middleware.NewTab(crewcache.New(e.api))
}

const testDevice = "0b7e3f5c-9d7a-4c1e-8f55-6a2b3c4d5e6f"

// browser drives the full middleware stack with a cookie jar and without
// following redirects.
type browser struct {
	t      *testing.T
	base   *url.URL
	client *http.Client
	csrf   string
}

var csrfField = regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`)

func (e *testEnv) startBrowser(t *testing.T) *browser {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(e.server.Handler(ctx))
	t.Cleanup(srv.Close)
	return newBrowser(t, srv.URL)
}

func newBrowser(t *testing.T, rawURL string) *browser {
	t.Helper()
	base, err := url.Parse(rawURL)
	require.NoError(t, err)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	if m := csrfField.FindSubmatch(body); m != nil {
		b.csrf = html.UnescapeString(string(m[1]))
	}
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base.String()+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

// post submits a form with the last CSRF token seen, fetching one from
// the login page first if none was seen yet.
func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	if b.csrf == "" {
		b.get("/login")
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("gorilla.csrf.Token", b.csrf)
	req, err := http.NewRequest(http.MethodPost, b.base.String()+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// postRaw submits a form without a CSRF token.
func (b *browser) postRaw(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base.String()+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) json(method, path string, body any, out any) *http.Response {
	b.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(b.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, b.base.String()+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, raw := b.do(req)
	if out != nil {
		require.NoError(b.t, json.Unmarshal([]byte(raw), out), raw)
	}
	return resp
}

func (b *browser) cookie(name string) *http.Cookie {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// sessionView reads /api/session.
func (b *browser) sessionView() sessionResponse {
	b.t.Helper()
	var out sessionResponse
	resp := b.json(http.MethodGet, "/api/session", nil, &out)
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	return out
}

// signIn logs in through the form and returns the redirect target.
func (b *browser) signIn(username string) string {
	b.t.Helper()
	resp, body := b.post("/login", url.Values{"username": {username}, "password": {"secret"}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode, body)
	return resp.Header.Get("Location")
}
