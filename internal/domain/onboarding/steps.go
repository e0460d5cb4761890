package onboarding

import "fmt"

// Step is a state of the onboarding flow.
type Step string

// Step constants
const (
	StepEntry                Step = "entry"
	StepRegistering          Step = "registering"
	StepAwaitingVerification Step = "awaiting_verification"
	StepSettingPassword      Step = "setting_password"
	StepProfileWizard        Step = "profile_wizard"
	StepHome                 Step = "home"
)

// Event moves the flow from one step to the next.
type Event string

// Event constants
const (
	EvStartRegistration     Event = "start_registration"
	EvRegistrationSent      Event = "registration_sent"
	EvEmailConfirmed        Event = "email_confirmed"
	EvEmailNotVerified      Event = "email_not_verified"
	EvSignedInNoRecord      Event = "signed_in_no_record"
	EvSignedInIncomplete    Event = "signed_in_incomplete"
	EvSignedInComplete      Event = "signed_in_complete"
	EvPasswordStillRequired Event = "password_still_required"
	EvProfileCompleted      Event = "profile_completed"
	EvIdentityLost          Event = "identity_lost"
)

// Transition is a single allowed edge of the flow.
type Transition struct {
	From  Step
	To    Step
	Event Event
}

var transitions = []Transition{
	{From: StepEntry, To: StepRegistering, Event: EvStartRegistration},
	{From: StepRegistering, To: StepAwaitingVerification, Event: EvRegistrationSent},

	{From: StepAwaitingVerification, To: StepSettingPassword, Event: EvEmailConfirmed},
	{From: StepAwaitingVerification, To: StepRegistering, Event: EvIdentityLost},

	// Set-password branches
	{From: StepSettingPassword, To: StepAwaitingVerification, Event: EvEmailNotVerified},
	{From: StepSettingPassword, To: StepProfileWizard, Event: EvSignedInNoRecord},
	{From: StepSettingPassword, To: StepProfileWizard, Event: EvSignedInIncomplete},
	{From: StepSettingPassword, To: StepHome, Event: EvSignedInComplete},
	{From: StepSettingPassword, To: StepSettingPassword, Event: EvPasswordStillRequired},
	{From: StepSettingPassword, To: StepRegistering, Event: EvIdentityLost},

	{From: StepProfileWizard, To: StepHome, Event: EvProfileCompleted},
}

// Advance returns the step reached by applying ev in from.
func Advance(from Step, ev Event) (Step, error) {
	for _, t := range transitions {
		if t.From == from && t.Event == ev {
			return t.To, nil
		}
	}
	return from, fmt.Errorf("onboarding: %s not allowed in %s", ev, from)
}

// PathFor returns the page that renders step.
func PathFor(step Step) string {
	switch step {
	case StepEntry, StepRegistering:
		return PathRegister
	case StepAwaitingVerification:
		return PathVerify
	case StepSettingPassword:
		return PathSetPassword
	case StepProfileWizard:
		return PathProfileWizard
	default:
		return PathHome
	}
}

// EventFor classifies a post-login decision as a flow event.
func EventFor(d Decision) Event {
	switch d.Path {
	case PathHome:
		return EvSignedInComplete
	case PathSetPassword:
		return EvPasswordStillRequired
	case PathProfileWizard:
		if d.Reason.IsLocked() {
			return EvSignedInIncomplete
		}
		return EvSignedInNoRecord
	default:
		return EvSignedInIncomplete
	}
}
