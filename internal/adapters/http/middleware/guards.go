package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// isNavigation reports whether r is a page load rather than a form post.
func isNavigation(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// RequireMember returns middleware that sends non-members to the login
// page, remembering the attempted path and query for after sign-in.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tab, ok := TabFromContext(r.Context())
		if ok && tab.Session().IsMember() {
			next.ServeHTTP(w, r)
			return
		}
		if ok && isNavigation(r) {
			returnTo := r.URL.RequestURI()
			tab.Update(func(s *session.Session) { s.LoginReturnTo = returnTo })
		}
		http.Redirect(w, r, onboarding.PathLogin, http.StatusSeeOther)
	})
}

// ResumeOnboarding returns middleware that sends a device with a pending
// registration back to the set-password step. It stays out of the way
// while an unexpired access token is present and on the flow's own pages.
func ResumeOnboarding(device devicestate.Store, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tab, ok := TabFromContext(r.Context())
			if !ok || !isNavigation(r) || onboarding.IsFlowPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			sess := tab.Session()
			if crewapi.AccessTokenValid(sess.AccessToken, now()) {
				next.ServeHTTP(w, r)
				return
			}
			username := pending.Read(r.Context(), device, DeviceFromContext(r.Context()))
			if username == "" {
				next.ServeHTTP(w, r)
				return
			}
			tab.Update(func(s *session.Session) { s.OnboardingUsername = username })
			slog.Info("onboarding_event", "event", "resumed", "username", username, "from", r.URL.Path)
			http.Redirect(w, r, onboarding.PathSetPassword, http.StatusSeeOther)
		})
	}
}

// LockedNavigation returns middleware that, while the session's route
// reason is locked, turns every navigation away from the onboarding flow
// into a redirect to the set-password step. The reason is read on each
// request, so the lock ends as soon as the reason changes.
func LockedNavigation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tab, ok := TabFromContext(r.Context())
		if !ok || !isNavigation(r) || onboarding.IsFlowPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if reason := tab.Session().RouteReason; reason.IsLocked() {
			slog.Debug("locked_navigation", "reason", reason, "path", r.URL.Path)
			http.Redirect(w, r, onboarding.PathSetPassword, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
