package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/crewcache"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// PasswordSetter defines the API calls needed by SetPassword.
type PasswordSetter interface {
	Authenticator
	PostLoginAPI
	SetPassword(ctx context.Context, username, password string) error
}

// SetPasswordInput carries the set-password form.
type SetPasswordInput struct {
	Username       string
	Password       string
	Confirm        string
	RememberDevice bool
	DeviceID       string
}

// SetPasswordResult carries the signed-in session and the next step.
type SetPasswordResult struct {
	Session  session.Session
	Step     onboarding.Step
	Decision onboarding.Decision
}

// SetPasswordDeps holds dependencies for SetPassword.
type SetPasswordDeps struct {
	API    PasswordSetter
	Cache  *crewcache.Cache
	Device devicestate.Store
}

// ExecuteSetPassword sets the first password, signs in with it and runs
// the post-login checks, strictly in that order.
// PRE: input.Username is the identity being onboarded
// POST: the error distinguishes four buckets: ErrEmailNotVerified (back to
// verification), ErrSetPasswordFailed (stay), ErrPasswordSetLoginFailed
// (password is set, go to login) and ErrPostLoginChecks (signed in, retry
// the checks); with ErrPostLoginChecks the result carries the signed-in session
func ExecuteSetPassword(ctx context.Context, input SetPasswordInput, deps SetPasswordDeps) (SetPasswordResult, error) {
	username := session.NormalizeIdentity(input.Username)
	if username == "" {
		return SetPasswordResult{}, ErrNoOnboardingIdentity
	}
	if input.Password == "" {
		return SetPasswordResult{}, ErrPasswordRequired
	}
	if input.Password != input.Confirm {
		return SetPasswordResult{}, ErrPasswordMismatch
	}

	if err := deps.API.SetPassword(ctx, username, input.Password); err != nil {
		if crewapi.IsEmailNotVerified(err) {
			slog.Info("onboarding_event", "event", "set_password_unverified", "username", username)
			return SetPasswordResult{Step: onboarding.StepAwaitingVerification}, ErrEmailNotVerified
		}
		slog.Warn("onboarding_event", "event", "set_password_failed", "username", username, "error", err)
		return SetPasswordResult{Step: onboarding.StepSettingPassword}, withServerMessage(ErrSetPasswordFailed, err)
	}
	slog.Info("onboarding_event", "event", "password_set", "username", username)

	sess, err := ExecuteLogin(ctx, LoginInput{
		Username:       username,
		Password:       input.Password,
		RememberDevice: input.RememberDevice,
	}, LoginDeps{API: deps.API})
	if err != nil {
		if errors.Is(err, ErrEmailNotVerified) {
			return SetPasswordResult{Step: onboarding.StepAwaitingVerification}, ErrEmailNotVerified
		}
		slog.Warn("onboarding_event", "event", "password_set_login_failed", "username", username)
		return SetPasswordResult{Step: onboarding.StepSettingPassword}, &ServerMessageError{
			Kind:    ErrPasswordSetLoginFailed,
			Message: serverText(err),
		}
	}

	post, err := ExecutePostLogin(ctx, PostLoginInput{Session: sess, DeviceID: input.DeviceID}, PostLoginDeps{
		API:    deps.API,
		Cache:  deps.Cache,
		Device: deps.Device,
	})
	if err != nil {
		return SetPasswordResult{Session: post.Session, Step: onboarding.StepSettingPassword}, err
	}

	step, err := onboarding.Advance(onboarding.StepSettingPassword, onboarding.EventFor(post.Decision))
	if err != nil {
		return SetPasswordResult{}, err
	}
	return SetPasswordResult{Session: post.Session, Step: step, Decision: post.Decision}, nil
}

// serverText extracts the server's part of a login failure.
func serverText(err error) string {
	var sm *ServerMessageError
	if errors.As(err, &sm) {
		return sm.Message
	}
	return ""
}
