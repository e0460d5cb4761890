package web

import (
	"net/http"
	"strconv"
	"time"
)

// sessionResponse is the read-only JSON view of the caller's session.
// INVARIANT: never carries tokens
type sessionResponse struct {
	Mode        string `json:"mode"`
	PSN         string `json:"psn,omitempty"`
	StaffNumber string `json:"staff_number,omitempty"`
	RouteReason string `json:"route_reason"`
	Onboarding  string `json:"onboarding_username,omitempty"`
	Member      bool   `json:"member"`
}

// handleAPISession handles GET /api/session.
func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}
	sess := tab.Session()
	writeJSON(w, http.StatusOK, sessionResponse{
		Mode:        string(sess.Mode),
		PSN:         sess.PSN(),
		StaffNumber: sess.StaffNumber(),
		RouteReason: string(sess.RouteReason),
		Onboarding:  sess.OnboardingUsername,
		Member:      sess.IsMember(),
	})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// handleDebugPerf handles GET /debug/perf?minutes=N&top=N with the
// collector snapshot. It is only mounted outside production.
func (s *Server) handleDebugPerf(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeJSONError(w, http.StatusNotFound, "performance collection is disabled")
		return
	}
	minutes := queryInt(r, "minutes", 60)
	top := queryInt(r, "top", 10)
	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, s.collector.Snapshot(since, top))
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
