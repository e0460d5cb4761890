package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"crewportal/internal/application/crewcache"
	"crewportal/internal/domain/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const tabContextKey contextKey = "tab"

// SessionIdle is how long an unused session is kept.
const SessionIdle = 24 * time.Hour

// Tab is the server-side state of one browser session: the session
// record, its profile cache and the operations currently in flight.
type Tab struct {
	mu       sync.Mutex
	sess     session.Session
	cache    *crewcache.Cache
	inflight map[string]bool
	lastSeen time.Time
}

// Session returns a copy of the session record.
// INVARIANT: callers never share the stored User record
func (t *Tab) Session() session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copySession(t.sess)
}

// SetAuth replaces the whole session record.
func (t *Tab) SetAuth(next session.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sess.SetAuth(next)
}

// Update applies fn to the session record under the tab lock.
func (t *Tab) Update(fn func(*session.Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.sess)
}

// Cache returns the tab's profile cache.
func (t *Tab) Cache() *crewcache.Cache {
	return t.cache
}

// TryBegin marks op as running and reports false when it already is.
// A true result must be paired with End.
func (t *Tab) TryBegin(op string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight[op] {
		return false
	}
	t.inflight[op] = true
	return true
}

// End clears the running mark set by TryBegin.
func (t *Tab) End(op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, op)
}

func (t *Tab) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

func (t *Tab) idleSince(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Sub(t.lastSeen)
}

func copySession(s session.Session) session.Session {
	if s.User != nil {
		u := *s.User
		if s.User.Extra != nil {
			u.Extra = make(map[string]string, len(s.User.Extra))
			for k, v := range s.User.Extra {
				u.Extra[k] = v
			}
		}
		s.User = &u
	}
	return s
}

// NewTab creates a guest tab. It is exported for handler tests.
func NewTab(cache *crewcache.Cache) *Tab {
	return &Tab{
		sess:     session.Guest(),
		cache:    cache,
		inflight: map[string]bool{},
		lastSeen: time.Now(),
	}
}

// SessionStore is an in-memory store of tabs keyed by cookie token.
type SessionStore struct {
	mu       sync.RWMutex
	tabs     map[string]*Tab
	newCache func() *crewcache.Cache
	now      func() time.Time
}

// NewSessionStore creates a store whose tabs get caches from newCache.
func NewSessionStore(newCache func() *crewcache.Cache) *SessionStore {
	return &SessionStore{
		tabs:     make(map[string]*Tab),
		newCache: newCache,
		now:      time.Now,
	}
}

// Create stores a new guest tab and returns its token.
// POST: Get(token) returns the tab until it idles out
func (ss *SessionStore) Create() (string, *Tab, error) {
	token, err := generateToken()
	if err != nil {
		return "", nil, err
	}
	tab := NewTab(ss.newCache())
	tab.lastSeen = ss.now()
	ss.mu.Lock()
	ss.tabs[token] = tab
	ss.mu.Unlock()
	return token, tab, nil
}

// Get returns the tab for token unless it has been idle for SessionIdle.
func (ss *SessionStore) Get(token string) (*Tab, bool) {
	ss.mu.RLock()
	tab, ok := ss.tabs[token]
	ss.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := ss.now()
	if tab.idleSince(now) > SessionIdle {
		ss.Delete(token)
		return nil, false
	}
	tab.touch(now)
	return tab, true
}

// Delete removes a tab.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.tabs, token)
}

// Sweep removes idle tabs and returns how many were removed.
func (ss *SessionStore) Sweep() int {
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	removed := 0
	for token, tab := range ss.tabs {
		if tab.idleSince(now) > SessionIdle {
			delete(ss.tabs, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored tabs.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.tabs)
}

// SessionCookieName names the browser-session cookie.
const SessionCookieName = "xcm_session"

// Session returns middleware that attaches the caller's tab to the
// request context, creating a tab and cookie when there is none.
// The cookie has no MaxAge, so the session ends with the browser.
func Session(sessions *SessionStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tab *Tab
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				tab, _ = sessions.Get(cookie.Value)
			}
			if tab == nil {
				token, created, err := sessions.Create()
				if err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				tab = created
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    token,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					Path:     "/",
				})
			}
			next.ServeHTTP(w, r.WithContext(ContextWithTab(r.Context(), tab)))
		})
	}
}

// TabFromContext extracts the tab from the request context.
func TabFromContext(ctx context.Context) (*Tab, bool) {
	tab, ok := ctx.Value(tabContextKey).(*Tab)
	return tab, ok
}

// ContextWithTab returns a context carrying tab.
func ContextWithTab(ctx context.Context, tab *Tab) context.Context {
	return context.WithValue(ctx, tabContextKey, tab)
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
