package orchestrators

import (
	"context"
	"log/slog"

	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// ConfirmVerifiedInput carries the identity handed over by the previous
// step, if any, and the device whose marker is the fallback.
type ConfirmVerifiedInput struct {
	Carried  string
	DeviceID string
}

// ConfirmVerifiedResult names the identity that continues to set-password.
type ConfirmVerifiedResult struct {
	Username string
	Step     onboarding.Step
	Path     string
}

// ExecuteConfirmVerified advances past the "I have verified my email"
// step. Verification itself happens out of band, so no API call is made.
// POST: ErrNoOnboardingIdentity when neither the carried identity nor the
// device marker names anyone
func ExecuteConfirmVerified(ctx context.Context, input ConfirmVerifiedInput, device devicestate.Store) (ConfirmVerifiedResult, error) {
	username := session.NormalizeIdentity(input.Carried)
	if username == "" {
		username = pending.Read(ctx, device, input.DeviceID)
	}
	if username == "" {
		slog.Info("onboarding_event", "event", "verify_without_identity")
		step, _ := onboarding.Advance(onboarding.StepAwaitingVerification, onboarding.EvIdentityLost)
		return ConfirmVerifiedResult{Step: step, Path: onboarding.PathFor(step)}, ErrNoOnboardingIdentity
	}

	step, err := onboarding.Advance(onboarding.StepAwaitingVerification, onboarding.EvEmailConfirmed)
	if err != nil {
		return ConfirmVerifiedResult{}, err
	}
	slog.Info("onboarding_event", "event", "email_confirmed", "username", username)
	return ConfirmVerifiedResult{Username: username, Step: step, Path: onboarding.PathFor(step)}, nil
}
