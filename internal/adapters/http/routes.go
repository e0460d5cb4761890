package web

import (
	"net/http"

	"crewportal/internal/adapters/http/middleware"
)

// registerRoutes mounts every page and endpoint on mux.
//
// Page guards, outermost first: ResumeOnboarding, LockedNavigation and,
// for member pages, RequireMember. JSON endpoints are never redirected.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	page := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.LockedNavigation,
			middleware.ResumeOnboarding(s.device, s.now),
		)
	}
	memberPage := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.RequireMember,
			middleware.LockedNavigation,
			middleware.ResumeOnboarding(s.device, s.now),
		)
	}

	mux.Handle("/{$}", page(s.handleHome))
	mux.Handle("/login", page(s.handleLogin))
	mux.Handle("/login/retry", page(s.handleLoginRetry))
	mux.Handle("/logout", page(s.handleLogout))
	mux.Handle("/register", page(s.handleRegister))
	mux.Handle("/register/verify", page(s.handleVerify))
	mux.Handle("/register/password", page(s.handleSetPassword))
	mux.Handle("/profile/wizard", memberPage(s.handleWizard))
	mux.Handle("/profile", memberPage(s.handleProfile))
	mux.Handle("/airports", page(s.handleAirports))
	mux.Handle("/feedback", page(s.handleFeedback))

	mux.HandleFunc("/api/favourites", s.handleAPIFavourites)
	mux.HandleFunc("/api/session", s.handleAPISession)
	mux.HandleFunc("/healthz", s.handleHealth)
	if !s.cfg.IsProduction() {
		mux.HandleFunc("/debug/perf", s.handleDebugPerf)
	}
}
