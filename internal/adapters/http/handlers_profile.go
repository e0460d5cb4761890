package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/application/orchestrators"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/flight"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// detailsSavedBanner is shown once on the first home visit after the
// profile wizard completes.
const detailsSavedBanner = "Your details have been saved. Welcome aboard!"

type homePage struct {
	Flight            *flight.Flight
	FlightUnavailable bool
	HasProfile        bool
	Favourites        []string
}

// handleHome renders the landing page. Members see their next flight,
// fetched under the request context so a closed tab cancels the call.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sess := tab.Session()

	var banner string
	if sess.RouteReason == session.ReasonDetailsSaved {
		banner = detailsSavedBanner
		tab.Update(func(st *session.Session) {
			if st.RouteReason == session.ReasonDetailsSaved {
				st.RouteReason = session.ReasonNone
			}
		})
	}

	page := homePage{Favourites: s.favs.Load(ctx, middleware.DeviceFromContext(ctx), sess)}
	if sess.IsMember() {
		member, err := tab.Cache().Sync(ctx, sess)
		if err != nil {
			slog.Warn("home_profile_unavailable", "psn", sess.PSN(), "error", err)
		}
		page.HasProfile = member != nil
		page.Flight, page.FlightUnavailable = s.nextFlight(ctx, sess)
	}

	s.render(w, r, "home.html", view{Title: "Home", Banner: banner, Page: page})
}

// nextFlight fetches the member's next duty flight. It returns nil when
// none is scheduled, and reports unavailable when the call failed.
func (s *Server) nextFlight(ctx context.Context, sess session.Session) (*flight.Flight, bool) {
	f, err := s.api.NextFlight(ctx, sess.AccessToken, sess.PSN())
	switch {
	case errors.Is(err, context.Canceled):
		return nil, true
	case err != nil:
		slog.Warn("next_flight_failed", "psn", sess.PSN(), "error", err)
		return nil, true
	case f.IsZero():
		return nil, false
	}
	return &f, false
}

type profilePage struct {
	Member *crew.Member
}

// handleProfile shows the cached crew record.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	sess := tab.Session()
	member, err := tab.Cache().Sync(r.Context(), sess)
	if err != nil {
		slog.Warn("profile_unavailable", "psn", sess.PSN(), "error", err)
		s.render(w, r, "profile.html", view{Status: http.StatusBadGateway, Title: "Profile", Error: "Your profile is not available right now, please try again.", Page: profilePage{}})
		return
	}
	s.render(w, r, "profile.html", view{Title: "Profile", Page: profilePage{Member: member}})
}

type wizardPage struct {
	Sections []crew.Section
	Section  crew.Section
	Fields   []string
	Record   map[string]string
	Last     bool
}

func wizardView(status int, sec crew.Section, record map[string]string, errMsg string) view {
	_, hasNext := sec.Next()
	return view{
		Status: status,
		Title:  "Your crew profile",
		Error:  errMsg,
		Page: wizardPage{
			Sections: crew.Sections,
			Section:  sec,
			Fields:   crew.Fields[sec],
			Record:   record,
			Last:     !hasNext,
		},
	}
}

// handleWizard handles GET (one section, prefilled) and POST (save the
// section) for /profile/wizard.
func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	sess := tab.Session()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		sec, err := crew.ParseSection(r.URL.Query().Get("section"))
		if err != nil {
			http.Redirect(w, r, onboarding.PathProfileWizard, http.StatusSeeOther)
			return
		}
		member, err := tab.Cache().Sync(r.Context(), sess)
		if err != nil {
			slog.Warn("wizard_prefill_failed", "psn", sess.PSN(), "error", err)
		}
		s.render(w, r, "wizard.html", wizardView(http.StatusOK, sec, member.SectionRecord(sec), ""))

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		sec, err := crew.ParseSection(r.FormValue("section"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		record := make(map[string]string, len(crew.Fields[sec]))
		for _, f := range crew.Fields[sec] {
			record[f] = r.FormValue(f)
		}
		if !tab.TryBegin("save_profile") {
			s.render(w, r, "wizard.html", wizardView(http.StatusConflict, sec, record, orchestrators.ErrBusy.Error()))
			return
		}
		defer tab.End("save_profile")

		res, err := orchestrators.ExecuteSaveProfile(r.Context(), orchestrators.SaveProfileInput{
			Session:  sess,
			DeviceID: middleware.DeviceFromContext(r.Context()),
			Section:  sec,
			Record:   record,
		}, orchestrators.SaveProfileDeps{API: s.api, Cache: tab.Cache(), Device: s.device})
		switch {
		case err == nil:
			if res.Done {
				tab.Update(func(st *session.Session) { st.RouteReason = res.Session.RouteReason })
			}
			http.Redirect(w, r, res.Path, http.StatusSeeOther)
		case errors.Is(err, orchestrators.ErrNotSignedIn):
			http.Redirect(w, r, onboarding.PathLogin, http.StatusSeeOther)
		case errors.Is(err, orchestrators.ErrProfileSaveFailed):
			s.render(w, r, "wizard.html", wizardView(http.StatusBadGateway, sec, record, err.Error()))
		default:
			s.render(w, r, "wizard.html", wizardView(http.StatusBadRequest, sec, record, err.Error()))
		}

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}
