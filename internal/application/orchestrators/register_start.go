package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/application/pending"
	"crewportal/internal/domain/onboarding"
)

// RegistrationStarter defines the API call needed by RegisterStart.
type RegistrationStarter interface {
	RegisterStart(ctx context.Context, req crewapi.RegisterRequest) error
}

// RegisterStartInput carries the registration form and the device it came from.
type RegisterStartInput struct {
	Registration onboarding.Registration
	DeviceID     string
}

// RegisterStartResult carries the identity being onboarded and where to go next.
type RegisterStartResult struct {
	Username string
	Step     onboarding.Step
	Path     string
}

// RegisterStartDeps holds dependencies for RegisterStart.
type RegisterStartDeps struct {
	API    RegistrationStarter
	Device devicestate.Store
}

// ExecuteRegisterStart validates the form, asks the API to send the
// verification email and persists the pending-onboarding marker.
// PRE: none
// POST: on success the marker holds Username and the flow is awaiting verification
// INVARIANT: validation errors are returned unwrapped; API failures only as ErrRegistrationFailed
func ExecuteRegisterStart(ctx context.Context, input RegisterStartInput, deps RegisterStartDeps) (RegisterStartResult, error) {
	reg := input.Registration
	if err := reg.Validate(); err != nil {
		return RegisterStartResult{}, err
	}
	step, err := onboarding.Advance(onboarding.StepEntry, onboarding.EvStartRegistration)
	if err != nil {
		return RegisterStartResult{}, err
	}

	emp, _ := onboarding.LookupEmployer(reg.Company)
	username := reg.Username()
	err = deps.API.RegisterStart(ctx, crewapi.RegisterRequest{
		Company:          emp.Code,
		Job:              strings.TrimSpace(reg.Job),
		StaffNumber:      strings.TrimSpace(reg.StaffNumber),
		HVEmailLocalPart: reg.EmailLocalPartFor(),
	})
	if err != nil {
		slog.Warn("onboarding_event", "event", "register_failed", "username", username, "error", err)
		return RegisterStartResult{}, ErrRegistrationFailed
	}

	if err := pending.Write(ctx, deps.Device, input.DeviceID, username); err != nil {
		slog.Warn("pending_marker_write_failed", "username", username, "error", err)
	}

	step, err = onboarding.Advance(step, onboarding.EvRegistrationSent)
	if err != nil {
		return RegisterStartResult{}, err
	}
	slog.Info("onboarding_event", "event", "register_started", "username", username, "company", emp.Code)
	return RegisterStartResult{Username: username, Step: step, Path: onboarding.PathFor(step)}, nil
}
