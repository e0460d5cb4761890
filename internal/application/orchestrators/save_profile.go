package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/crewcache"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// ProfileSaver defines the API call needed by SaveProfile.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, token, psn string, section crew.Section, record map[string]string) error
}

// SaveProfileInput carries one wizard page.
type SaveProfileInput struct {
	Session  session.Session
	DeviceID string
	Section  crew.Section
	Record   map[string]string
}

// SaveProfileResult carries the updated session and the next page.
type SaveProfileResult struct {
	Session session.Session
	Next    crew.Section
	Done    bool
	Path    string
}

// SaveProfileDeps holds dependencies for SaveProfile.
type SaveProfileDeps struct {
	API    ProfileSaver
	Cache  *crewcache.Cache
	Device devicestate.Store
}

// ExecuteSaveProfile saves one wizard page and moves to the next. Saving
// the last page completes onboarding.
// PRE: input.Session is a member session
// POST: on the last page the pending marker is cleared and RouteReason is details_saved
func ExecuteSaveProfile(ctx context.Context, input SaveProfileInput, deps SaveProfileDeps) (SaveProfileResult, error) {
	sess := input.Session
	if !sess.IsMember() {
		return SaveProfileResult{Session: sess}, ErrNotSignedIn
	}
	psn := sess.PSN()

	record := make(map[string]string, len(crew.Fields[input.Section]))
	for _, f := range crew.Fields[input.Section] {
		record[f] = strings.TrimSpace(input.Record[f])
	}
	if err := crew.ValidateSection(input.Section, record); err != nil {
		return SaveProfileResult{Session: sess}, err
	}

	if err := deps.API.SaveProfile(ctx, sess.AccessToken, psn, input.Section, record); err != nil {
		slog.Warn("profile_save_failed", "psn", psn, "section", input.Section, "error", err)
		return SaveProfileResult{Session: sess}, ErrProfileSaveFailed
	}
	slog.Info("profile_saved", "psn", psn, "section", input.Section)

	if deps.Cache != nil {
		_, _ = deps.Cache.LoadCrew(ctx, sess, psn)
	}

	if next, ok := input.Section.Next(); ok {
		return SaveProfileResult{
			Session: sess,
			Next:    next,
			Path:    onboarding.PathProfileWizard + "?section=" + string(next),
		}, nil
	}

	if err := pending.Clear(ctx, deps.Device, input.DeviceID); err != nil {
		slog.Warn("pending_marker_clear_failed", "psn", psn, "error", err)
	}
	if _, err := onboarding.Advance(onboarding.StepProfileWizard, onboarding.EvProfileCompleted); err != nil {
		return SaveProfileResult{Session: sess}, err
	}
	sess.RouteReason = session.ReasonDetailsSaved
	slog.Info("onboarding_event", "event", "profile_completed", "psn", psn)
	return SaveProfileResult{Session: sess, Done: true, Path: onboarding.PathHome}, nil
}
