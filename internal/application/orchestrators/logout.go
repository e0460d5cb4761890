package orchestrators

import (
	"log/slog"

	"crewportal/internal/application/crewcache"
	"crewportal/internal/domain/session"
)

// ExecuteLogout resets the session to a guest and empties its profile
// cache. The caller navigates.
// POST: sess is a fresh guest session
func ExecuteLogout(sess *session.Session, cache *crewcache.Cache) {
	psn := sess.PSN()
	sess.ResetToGuestState()
	if cache != nil {
		cache.Clear()
	}
	slog.Info("auth_event", "event", "logout", "psn", psn)
}
