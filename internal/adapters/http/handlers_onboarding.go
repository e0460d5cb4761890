package web

import (
	"errors"
	"html/template"
	"net/http"
	"sort"

	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/application/orchestrators"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// jobs are the roles offered on the registration form.
var jobs = []string{"Cabin attendant", "Purser", "Senior purser", "First officer", "Captain"}

type registerPage struct {
	Employers []onboarding.Employer
	Jobs      []string
	Contract  template.HTML
	Form      onboarding.Registration
}

func (s *Server) registerView(status int, form onboarding.Registration, errMsg string) view {
	employers := make([]onboarding.Employer, 0, len(onboarding.Employers))
	for _, emp := range onboarding.Employers {
		employers = append(employers, emp)
	}
	sort.Slice(employers, func(i, j int) bool { return employers[i].Code < employers[j].Code })
	return view{
		Status: status,
		Title:  "Register",
		Error:  errMsg,
		Page: registerPage{
			Employers: employers,
			Jobs:      jobs,
			Contract:  s.contract,
			Form:      form,
		},
	}
}

// handleRegister handles GET (form) and POST (start registration) for /register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		errMsg := ""
		if r.URL.Query().Get("missing") != "" {
			errMsg = orchestrators.ErrNoOnboardingIdentity.Error()
		}
		s.render(w, r, "register.html", s.registerView(http.StatusOK, onboarding.Registration{}, errMsg))

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form := onboarding.Registration{
			Company:          r.FormValue("company"),
			Job:              r.FormValue("job"),
			StaffNumber:      r.FormValue("staff_number"),
			EmailLocalPart:   r.FormValue("email_local_part"),
			ContractAccepted: r.FormValue("contract_accepted") != "",
		}
		if !tab.TryBegin("register") {
			s.render(w, r, "register.html", s.registerView(http.StatusConflict, form, orchestrators.ErrBusy.Error()))
			return
		}
		defer tab.End("register")

		res, err := orchestrators.ExecuteRegisterStart(r.Context(), orchestrators.RegisterStartInput{
			Registration: form,
			DeviceID:     middleware.DeviceFromContext(r.Context()),
		}, orchestrators.RegisterStartDeps{API: s.api, Device: s.device})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, orchestrators.ErrRegistrationFailed) {
				status = http.StatusBadGateway
			}
			s.render(w, r, "register.html", s.registerView(status, form, err.Error()))
			return
		}
		tab.Update(func(sess *session.Session) { sess.OnboardingUsername = res.Username })
		http.Redirect(w, r, res.Path, http.StatusSeeOther)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

type verifyPage struct {
	Username string
}

// handleVerify handles GET (instructions) and POST (confirm) for /register/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	device := middleware.DeviceFromContext(r.Context())

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		username := tab.Session().OnboardingUsername
		if username == "" {
			username = pending.Read(r.Context(), s.device, device)
		}
		s.render(w, r, "verify.html", view{Title: "Check your email", Page: verifyPage{Username: username}})

	case http.MethodPost:
		res, err := orchestrators.ExecuteConfirmVerified(r.Context(), orchestrators.ConfirmVerifiedInput{
			Carried:  tab.Session().OnboardingUsername,
			DeviceID: device,
		}, s.device)
		if err != nil {
			http.Redirect(w, r, res.Path+"?missing=1", http.StatusSeeOther)
			return
		}
		tab.Update(func(sess *session.Session) { sess.OnboardingUsername = res.Username })
		http.Redirect(w, r, res.Path, http.StatusSeeOther)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

type setPasswordPage struct {
	Username string
}

// onboardingIdentity resolves who is setting a password. A signed-in
// member only ever sets their own password, and only while their status
// asks for one. A guest uses the identity carried in the session, then
// the device marker.
func (s *Server) onboardingIdentity(r *http.Request, sess session.Session) string {
	if sess.IsMember() {
		if sess.RouteReason == session.ReasonPasswordRequired {
			return sess.PSN()
		}
		return ""
	}
	if sess.OnboardingUsername != "" {
		return session.NormalizeIdentity(sess.OnboardingUsername)
	}
	return pending.Read(r.Context(), s.device, middleware.DeviceFromContext(r.Context()))
}

// handleSetPassword handles GET (form) and POST (set, sign in, route)
// for /register/password.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	sess := tab.Session()

	// the locked-navigation target for an incomplete profile is this
	// page; the wizard is where that member belongs
	if sess.IsMember() && sess.RouteReason == session.ReasonProfileIncomplete {
		http.Redirect(w, r, onboarding.PathProfileWizard, http.StatusSeeOther)
		return
	}

	username := s.onboardingIdentity(r, sess)
	if username == "" {
		dest := onboarding.PathRegister
		if sess.IsMember() {
			dest = onboarding.PathHome
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.render(w, r, "set_password.html", view{Title: "Choose your password", Page: setPasswordPage{Username: username}})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		if !tab.TryBegin("set_password") {
			s.render(w, r, "set_password.html", view{Status: http.StatusConflict, Title: "Choose your password", Error: orchestrators.ErrBusy.Error(), Page: setPasswordPage{Username: username}})
			return
		}
		defer tab.End("set_password")

		res, err := orchestrators.ExecuteSetPassword(r.Context(), orchestrators.SetPasswordInput{
			Username:       username,
			Password:       r.FormValue("password"),
			Confirm:        r.FormValue("confirm"),
			RememberDevice: r.FormValue("remember_device") != "",
			DeviceID:       middleware.DeviceFromContext(r.Context()),
		}, orchestrators.SetPasswordDeps{API: s.api, Cache: tab.Cache(), Device: s.device})

		switch {
		case err == nil:
			next := res.Session
			next.LoginReturnTo = session.HomePath
			tab.SetAuth(next)
			http.Redirect(w, r, res.Decision.Path, http.StatusSeeOther)
		case errors.Is(err, orchestrators.ErrEmailNotVerified):
			tab.Update(func(sess *session.Session) { sess.OnboardingUsername = username })
			s.render(w, r, "verify.html", view{Status: http.StatusForbidden, Title: "Check your email", Error: err.Error(), Page: verifyPage{Username: username}})
		case errors.Is(err, orchestrators.ErrPasswordSetLoginFailed):
			s.render(w, r, "login.html", view{Title: "Sign in", Error: err.Error(), Page: loginPage{Username: username}})
		case errors.Is(err, orchestrators.ErrPostLoginChecks):
			tab.SetAuth(res.Session)
			http.Redirect(w, r, onboarding.PathLoginRetry, http.StatusSeeOther)
		case errors.Is(err, orchestrators.ErrNoOnboardingIdentity):
			http.Redirect(w, r, onboarding.PathRegister+"?missing=1", http.StatusSeeOther)
		default:
			status := http.StatusBadRequest
			if errors.Is(err, orchestrators.ErrSetPasswordFailed) {
				status = http.StatusUnprocessableEntity
			}
			s.render(w, r, "set_password.html", view{Status: status, Title: "Choose your password", Error: err.Error(), Page: setPasswordPage{Username: username}})
		}

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}
