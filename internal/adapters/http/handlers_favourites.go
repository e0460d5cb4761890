package web

import (
	"errors"
	"net/http"

	"crewportal/internal/adapters/http/middleware"
	favouritesApp "crewportal/internal/application/favourites"
	"crewportal/internal/domain/favourites"
)

type airportsPage struct {
	Favourites []string
	Max        int
}

// handleAirports handles GET (list) and POST (add or remove) for /airports.
func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	device := middleware.DeviceFromContext(ctx)
	sess := tab.Session()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.render(w, r, "airports.html", view{Title: "Airports", Page: airportsPage{
			Favourites: s.favs.Load(ctx, device, sess),
			Max:        favouritesApp.MaxFavs(sess),
		}})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		code := r.FormValue("code")
		switch r.FormValue("action") {
		case "add":
			list, err := s.favs.Add(ctx, device, sess, code)
			if err != nil {
				if list == nil {
					list = s.favs.Load(ctx, device, sess)
				}
				s.render(w, r, "airports.html", view{Status: statusForFavourites(err), Title: "Airports", Error: err.Error(), Page: airportsPage{
					Favourites: list,
					Max:        favouritesApp.MaxFavs(sess),
				}})
				return
			}
		case "remove":
			s.favs.Remove(ctx, device, sess, code)
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "/airports", http.StatusSeeOther)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func statusForFavourites(err error) int {
	switch {
	case errors.Is(err, favourites.ErrFull):
		return http.StatusConflict
	case errors.Is(err, favourites.ErrInvalidCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// favouritesResponse is the JSON shape of every /api/favourites answer.
type favouritesResponse struct {
	Favourites []string `json:"favourites"`
	Max        int      `json:"max"`
	Key        string   `json:"key"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type replaceRequest struct {
	Favourites []string `json:"favourites"`
}

// handleAPIFavourites serves the favourites list as JSON:
// GET reads, POST adds, DELETE removes and PUT replaces.
func (s *Server) handleAPIFavourites(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	device := middleware.DeviceFromContext(ctx)
	sess := tab.Session()

	respond := func(list []string) {
		writeJSON(w, http.StatusOK, favouritesResponse{
			Favourites: list,
			Max:        favouritesApp.MaxFavs(sess),
			Key:        favouritesApp.Key(sess),
		})
	}

	switch r.Method {
	case http.MethodGet:
		respond(s.favs.Load(ctx, device, sess))

	case http.MethodPost:
		var req codeRequest
		if err := strictDecode(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		list, err := s.favs.Add(ctx, device, sess, req.Code)
		if err != nil {
			writeJSONError(w, statusForFavourites(err), err.Error())
			return
		}
		respond(list)

	case http.MethodDelete:
		code := r.URL.Query().Get("code")
		if code == "" {
			var req codeRequest
			if err := strictDecode(r, &req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "code is required")
				return
			}
			code = req.Code
		}
		respond(s.favs.Remove(ctx, device, sess, code))

	case http.MethodPut:
		var req replaceRequest
		if err := strictDecode(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		respond(s.favs.Replace(ctx, device, sess, req.Favourites))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPut)
	}
}
