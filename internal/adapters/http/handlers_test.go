package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/profile", "/profile"},
		{"/profile?section=esta", "/profile?section=esta"},
		{"profile", "/"},
		{"//evil.example/x", "/"},
		{"/\\evil.example", "/"},
		{"https://evil.example/", "/"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, safeReturnTo(tt.in))
		})
	}
}

func TestNewServerRequiresAPIAndDevice(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewServer(env.server.cfg, Deps{Device: env.device})
	assert.Error(t, err)
	_, err = NewServer(env.server.cfg, Deps{API: env.api})
	assert.Error(t, err)
}

func TestAllPagesParse(t *testing.T) {
	pages, err := parsePages()
	require.NoError(t, err)
	for _, name := range pageNames {
		assert.Contains(t, pages, name)
	}

	contract, err := renderContractTerms()
	require.NoError(t, err)
	assert.Contains(t, string(contract), "<h")
}

func TestHandleLoginGETRendersForm(t *testing.T) {
	env := newTestEnv(t)
	tab := env.newTab()

	rr := httptest.NewRecorder()
	env.server.handleLogin(rr, env.request(http.MethodGet, "/login?username=KLM12345", nil, tab))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="KLM12345"`)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestHandleLoginBusy(t *testing.T) {
	env := newTestEnv(t)
	tab := env.newTab()
	require.True(t, tab.TryBegin("login"))

	form := url.Values{"username": {"KLM12345"}, "password": {"x"}}
	rr := httptest.NewRecorder()
	env.server.handleLogin(rr, env.request(http.MethodPost, "/login", strings.NewReader(form.Encode()), tab))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 0, env.api.called(crewapi.EndpointLogin))
}

func TestHandleLoginEmailNotVerified(t *testing.T) {
	env := newTestEnv(t)
	env.api.set(func(f *fakeAPI) {
		f.errs[crewapi.EndpointLogin] = &crewapi.APIError{Endpoint: crewapi.EndpointLogin, Status: http.StatusForbidden, Message: "Email not verified"}
	})
	tab := env.newTab()

	form := url.Values{"username": {"KLM12345"}, "password": {"x"}}
	rr := httptest.NewRecorder()
	env.server.handleLogin(rr, env.request(http.MethodPost, "/login", strings.NewReader(form.Encode()), tab))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "not verified")
	assert.Equal(t, session.ModeGuest, tab.Session().Mode)
}

func TestHandleWizardUnknownSectionRedirects(t *testing.T) {
	env := newTestEnv(t)
	tab := env.newTab()
	user := session.NewUser("KLM12345")
	tab.SetAuth(session.Session{Mode: session.ModeMember, User: &user, AccessToken: "t", RouteReason: session.ReasonNone})

	rr := httptest.NewRecorder()
	env.server.handleWizard(rr, env.request(http.MethodGet, "/profile/wizard?section=visa", nil, tab))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, onboarding.PathProfileWizard, rr.Header().Get("Location"))
}

func TestHandleWizardSaveFailureKeepsInput(t *testing.T) {
	env := newTestEnv(t)
	env.api.set(func(f *fakeAPI) {
		f.errs[crewapi.EndpointSaveProfile+"passport"] = &crewapi.APIError{Endpoint: crewapi.EndpointSaveProfile, Status: http.StatusInternalServerError}
	})
	tab := env.newTab()
	user := session.NewUser("KLM12345")
	tab.SetAuth(session.Session{Mode: session.ModeMember, User: &user, AccessToken: "t", RouteReason: session.ReasonProfileIncomplete})

	form := url.Values{
		"section":          {"passport"},
		"passport_number":  {"NX1234567"},
		"passport_country": {"NL"},
		"passport_expiry":  {"2031-01-01"},
	}
	rr := httptest.NewRecorder()
	env.server.handleWizard(rr, env.request(http.MethodPost, "/profile/wizard", strings.NewReader(form.Encode()), tab))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="NX1234567"`)
	assert.Equal(t, session.ReasonProfileIncomplete, tab.Session().RouteReason)
}

func TestHandleWizardMissingField(t *testing.T) {
	env := newTestEnv(t)
	tab := env.newTab()
	user := session.NewUser("KLM12345")
	tab.SetAuth(session.Session{Mode: session.ModeMember, User: &user, AccessToken: "t"})

	form := url.Values{"section": {"general"}, "first_name": {"Anna"}}
	rr := httptest.NewRecorder()
	env.server.handleWizard(rr, env.request(http.MethodPost, "/profile/wizard", strings.NewReader(form.Encode()), tab))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "last name is required")
	assert.Equal(t, 0, env.api.called(crewapi.EndpointSaveProfile+"general"))
}

func TestHandleProfileUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.api.set(func(f *fakeAPI) {
		f.errs[crewapi.EndpointFetchProfile] = &crewapi.APIError{Endpoint: crewapi.EndpointFetchProfile, Status: http.StatusBadGateway}
	})
	tab := env.newTab()
	user := session.NewUser("KLM12345")
	tab.SetAuth(session.Session{Mode: session.ModeMember, User: &user, AccessToken: "t"})

	rr := httptest.NewRecorder()
	env.server.handleProfile(rr, env.request(http.MethodGet, "/profile", nil, tab))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "not available right now")
}

func TestHandleAPIFavouritesRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	tab := env.newTab()

	req := env.request(http.MethodPost, "/api/favourites", strings.NewReader(`{"code":"AMS","extra":1}`), tab)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.server.handleAPIFavourites(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = env.request(http.MethodPatch, "/api/favourites", nil, tab)
	rr = httptest.NewRecorder()
	env.server.handleAPIFavourites(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSweepSessionsKeepsActiveTabs(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.server.Sessions().Create()
	require.NoError(t, err)

	assert.Equal(t, 0, env.server.Sessions().Sweep())
	assert.Equal(t, 1, env.server.Sessions().Len())
}
