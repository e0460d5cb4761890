package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/crewcache"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// Authenticator defines the API call needed by Login.
type Authenticator interface {
	Login(ctx context.Context, creds crewapi.Credentials) (crewapi.LoginResult, error)
}

// PostLoginAPI defines the API calls needed by PostLogin.
type PostLoginAPI interface {
	CrewExists(ctx context.Context, token, psn string) (bool, error)
	MemberStatus(ctx context.Context, token, psn string) (string, error)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Username       string
	Password       string
	RememberDevice bool
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	API Authenticator
}

// ExecuteLogin authenticates and returns the member session to install.
// This is phase 1 of sign-in; ExecutePostLogin is phase 2.
// PRE: none
// POST: on success the session is a member session holding both tokens
// and RouteReason none
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return session.Session{}, ErrMissingCredentials
	}

	res, err := deps.API.Login(ctx, crewapi.Credentials{
		Username:       username,
		Password:       input.Password,
		RememberDevice: input.RememberDevice,
	})
	if err != nil {
		if crewapi.IsEmailNotVerified(err) {
			slog.Info("auth_event", "event", "login_blocked", "username", username, "reason", "email_not_verified")
			return session.Session{}, ErrEmailNotVerified
		}
		slog.Info("auth_event", "event", "login_failed", "username", username, "error", err)
		return session.Session{}, withServerMessage(ErrAuthFailed, err)
	}

	user := res.User
	slog.Info("auth_event", "event", "login_success", "psn", session.NormalizeIdentity(user.StaffIdentity))
	return session.Session{
		Mode:          session.ModeMember,
		User:          &user,
		AccessToken:   res.AccessToken,
		RefreshToken:  res.RefreshToken,
		RouteReason:   session.ReasonNone,
		LoginReturnTo: session.HomePath,
	}, nil
}

// PostLoginInput carries the freshly authenticated session.
type PostLoginInput struct {
	Session  session.Session
	DeviceID string
}

// PostLoginResult carries the session with its route reason set and the
// destination.
type PostLoginResult struct {
	Session  session.Session
	Decision onboarding.Decision
}

// PostLoginDeps holds dependencies for PostLogin.
type PostLoginDeps struct {
	API    PostLoginAPI
	Cache  *crewcache.Cache
	Device devicestate.Store
}

// ExecutePostLogin runs the routing checks after authentication: does a
// crew record exist, and if so what does the member status ask for.
// PRE: input.Session is a member session with a token
// POST: on ErrPostLoginChecks the returned session is input.Session
// unchanged, so the checks can be retried without signing in again
func ExecutePostLogin(ctx context.Context, input PostLoginInput, deps PostLoginDeps) (PostLoginResult, error) {
	sess := input.Session
	psn := sess.PSN()
	if !sess.IsMember() {
		return PostLoginResult{Session: sess}, ErrNotSignedIn
	}

	exists, err := deps.API.CrewExists(ctx, sess.AccessToken, psn)
	if err != nil {
		slog.Warn("auth_event", "event", "post_login_failed", "psn", psn, "check", "crew_exists", "error", err)
		return PostLoginResult{Session: sess}, ErrPostLoginChecks
	}

	var nextStep string
	if exists {
		nextStep, err = deps.API.MemberStatus(ctx, sess.AccessToken, psn)
		if err != nil {
			slog.Warn("auth_event", "event", "post_login_failed", "psn", psn, "check", "member_status", "error", err)
			return PostLoginResult{Session: sess}, ErrPostLoginChecks
		}
	}

	decision := onboarding.Decide(exists, nextStep)
	sess.RouteReason = decision.Reason

	if deps.Cache != nil {
		// a failed preload leaves the cache to the next page's Sync
		_, _ = deps.Cache.LoadCrew(ctx, sess, psn)
	}

	if decision.Path == onboarding.PathHome && deps.Device != nil && input.DeviceID != "" {
		if err := pending.Clear(ctx, deps.Device, input.DeviceID); err != nil {
			slog.Warn("pending_marker_clear_failed", "psn", psn, "error", err)
		}
	}

	slog.Info("auth_event", "event", "post_login_routed", "psn", psn, "exists", exists, "next_step", nextStep, "path", decision.Path)
	return PostLoginResult{Session: sess, Decision: decision}, nil
}
