package web

import (
	"errors"
	"net/http"

	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/application/orchestrators"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

type loginPage struct {
	Username       string
	RememberDevice bool
}

// handleLogin handles GET (form) and POST (authenticate) for /login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if sess := tab.Session(); sess.IsMember() {
			http.Redirect(w, r, safeReturnTo(sess.LoginReturnTo), http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", view{Title: "Sign in", Page: loginPage{Username: r.URL.Query().Get("username")}})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form := loginPage{
			Username:       r.FormValue("username"),
			RememberDevice: r.FormValue("remember_device") != "",
		}
		if !tab.TryBegin("login") {
			s.render(w, r, "login.html", view{Status: http.StatusConflict, Title: "Sign in", Error: orchestrators.ErrBusy.Error(), Page: form})
			return
		}
		defer tab.End("login")

		returnTo := tab.Session().LoginReturnTo
		sess, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
			Username:       form.Username,
			Password:       r.FormValue("password"),
			RememberDevice: form.RememberDevice,
		}, orchestrators.LoginDeps{API: s.api})
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, orchestrators.ErrMissingCredentials) {
				status = http.StatusBadRequest
			}
			s.render(w, r, "login.html", view{Status: status, Title: "Sign in", Error: err.Error(), Page: form})
			return
		}
		sess.LoginReturnTo = returnTo
		tab.SetAuth(sess)

		s.finishSignIn(w, r, tab, sess)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// finishSignIn runs the post-login checks for an authenticated session
// and redirects to where they lead. A failed check keeps the session
// signed in and sends the browser to the retry page.
func (s *Server) finishSignIn(w http.ResponseWriter, r *http.Request, tab *middleware.Tab, sess session.Session) {
	device := middleware.DeviceFromContext(r.Context())
	post, err := orchestrators.ExecutePostLogin(r.Context(), orchestrators.PostLoginInput{
		Session:  sess,
		DeviceID: device,
	}, orchestrators.PostLoginDeps{API: s.api, Cache: tab.Cache(), Device: s.device})
	if err != nil {
		if errors.Is(err, orchestrators.ErrNotSignedIn) {
			http.Redirect(w, r, onboarding.PathLogin, http.StatusSeeOther)
			return
		}
		tab.SetAuth(post.Session)
		http.Redirect(w, r, onboarding.PathLoginRetry, http.StatusSeeOther)
		return
	}

	completeSignIn(w, r, tab, post)
}

// completeSignIn installs the routed session and redirects. The home
// branch honours the path the user was sent away from.
func completeSignIn(w http.ResponseWriter, r *http.Request, tab *middleware.Tab, post orchestrators.PostLoginResult) {
	dest := post.Decision.Path
	next := post.Session
	if dest == onboarding.PathHome {
		dest = safeReturnTo(next.LoginReturnTo)
	}
	next.LoginReturnTo = session.HomePath
	tab.SetAuth(next)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// handleLoginRetry reruns only the post-login checks for a session that
// is already authenticated. Anyone else starts over at /login, without a
// return path pointing back here.
func (s *Server) handleLoginRetry(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	if !tab.Session().IsMember() {
		http.Redirect(w, r, onboarding.PathLogin, http.StatusSeeOther)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.render(w, r, "login_retry.html", view{Title: "Sign in"})
	case http.MethodPost:
		if !tab.TryBegin("login") {
			s.render(w, r, "login_retry.html", view{Status: http.StatusConflict, Title: "Sign in", Error: orchestrators.ErrBusy.Error()})
			return
		}
		defer tab.End("login")

		sess := tab.Session()
		device := middleware.DeviceFromContext(r.Context())
		post, err := orchestrators.ExecutePostLogin(r.Context(), orchestrators.PostLoginInput{
			Session:  sess,
			DeviceID: device,
		}, orchestrators.PostLoginDeps{API: s.api, Cache: tab.Cache(), Device: s.device})
		if err != nil {
			s.render(w, r, "login_retry.html", view{Status: http.StatusBadGateway, Title: "Sign in", Error: err.Error()})
			return
		}
		completeSignIn(w, r, tab, post)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleLogout handles POST /logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	tab.Update(func(sess *session.Session) {
		orchestrators.ExecuteLogout(sess, tab.Cache())
	})
	http.Redirect(w, r, onboarding.PathLogin, http.StatusSeeOther)
}
