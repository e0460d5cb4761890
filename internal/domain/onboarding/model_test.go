package onboarding_test

import (
	"errors"
	"testing"

	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// TestRegistration_Validate tests the employer-specific registration rules.
func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		reg     onboarding.Registration
		wantErr error
	}{
		{
			name:    "valid KLM without email",
			reg:     onboarding.Registration{Company: "KLM", Job: "cockpit", StaffNumber: "12345", ContractAccepted: true},
			wantErr: nil,
		},
		{
			name:    "valid Transavia with email",
			reg:     onboarding.Registration{Company: "HV", Job: "cabin", StaffNumber: "654321", EmailLocalPart: "j.doe", ContractAccepted: true},
			wantErr: nil,
		},
		{
			name:    "Transavia by name",
			reg:     onboarding.Registration{Company: "transavia", Job: "cabin", StaffNumber: "65432", EmailLocalPart: "j.doe", ContractAccepted: true},
			wantErr: nil,
		},
		{
			name:    "Transavia without email",
			reg:     onboarding.Registration{Company: "HV", Job: "cabin", StaffNumber: "654321", ContractAccepted: true},
			wantErr: onboarding.ErrMissingEmail,
		},
		{
			name:    "unknown employer",
			reg:     onboarding.Registration{Company: "XX", Job: "cabin", StaffNumber: "12345", ContractAccepted: true},
			wantErr: onboarding.ErrUnknownEmployer,
		},
		{
			name:    "four digits",
			reg:     onboarding.Registration{Company: "KLM", Job: "cockpit", StaffNumber: "1234", ContractAccepted: true},
			wantErr: onboarding.ErrInvalidStaffNumber,
		},
		{
			name:    "seven digits",
			reg:     onboarding.Registration{Company: "KLM", Job: "cockpit", StaffNumber: "1234567", ContractAccepted: true},
			wantErr: onboarding.ErrInvalidStaffNumber,
		},
		{
			name:    "letters in staff number",
			reg:     onboarding.Registration{Company: "KLM", Job: "cockpit", StaffNumber: "12a45", ContractAccepted: true},
			wantErr: onboarding.ErrInvalidStaffNumber,
		},
		{
			name:    "missing job",
			reg:     onboarding.Registration{Company: "KLM", StaffNumber: "12345", ContractAccepted: true},
			wantErr: onboarding.ErrMissingJob,
		},
		{
			name:    "contract not accepted",
			reg:     onboarding.Registration{Company: "KLM", Job: "cockpit", StaffNumber: "12345"},
			wantErr: onboarding.ErrContractNotAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestRegistration_Username tests username derivation.
func TestRegistration_Username(t *testing.T) {
	reg := onboarding.Registration{Company: "klm", Job: "cockpit", StaffNumber: " 12345 "}
	if got := reg.Username(); got != "KLM12345" {
		t.Errorf("Username() = %q, want KLM12345", got)
	}
	if got := reg.EmailLocalPartFor(); got != "" {
		t.Errorf("KLM must not send an email local part, got %q", got)
	}

	hv := onboarding.Registration{Company: "Transavia", StaffNumber: "654321", EmailLocalPart: " j.doe "}
	if got := hv.Username(); got != "HV654321" {
		t.Errorf("Username() = %q, want HV654321", got)
	}
	if got := hv.EmailLocalPartFor(); got != "j.doe" {
		t.Errorf("EmailLocalPartFor() = %q, want j.doe", got)
	}
}

// TestDecide tests the post-login decision mapping.
func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		exists   bool
		nextStep string
		want     onboarding.Decision
	}{
		{"no crew record", false, "set_password", onboarding.Decision{Path: onboarding.PathProfileWizard, Reason: session.ReasonNone}},
		{"set password", true, "set_password", onboarding.Decision{Path: onboarding.PathSetPassword, Reason: session.ReasonPasswordRequired}},
		{"details", true, "details", onboarding.Decision{Path: onboarding.PathProfileWizard, Reason: session.ReasonProfileIncomplete}},
		{"empty", true, "", onboarding.Decision{Path: onboarding.PathHome, Reason: session.ReasonNone}},
		{"unknown", true, "done", onboarding.Decision{Path: onboarding.PathHome, Reason: session.ReasonNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := onboarding.Decide(tt.exists, tt.nextStep); got != tt.want {
				t.Errorf("Decide(%v, %q) = %+v, want %+v", tt.exists, tt.nextStep, got, tt.want)
			}
		})
	}
}

// TestIsFlowPath tests flow page detection.
func TestIsFlowPath(t *testing.T) {
	for _, p := range []string{"/register", "/register/verify", "/register/password", "/login", "/login/retry", "/profile/wizard"} {
		if !onboarding.IsFlowPath(p) {
			t.Errorf("IsFlowPath(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"/", "/profile", "/airports", "/registered", "/loginx"} {
		if onboarding.IsFlowPath(p) {
			t.Errorf("IsFlowPath(%q) = true, want false", p)
		}
	}
}

// TestAdvance tests the flow transition table.
func TestAdvance(t *testing.T) {
	step := onboarding.StepEntry
	for _, ev := range []onboarding.Event{
		onboarding.EvStartRegistration,
		onboarding.EvRegistrationSent,
		onboarding.EvEmailConfirmed,
		onboarding.EvSignedInNoRecord,
		onboarding.EvProfileCompleted,
	} {
		next, err := onboarding.Advance(step, ev)
		if err != nil {
			t.Fatalf("Advance(%s, %s): %v", step, ev, err)
		}
		step = next
	}
	if step != onboarding.StepHome {
		t.Errorf("final step = %s, want home", step)
	}

	if _, err := onboarding.Advance(onboarding.StepEntry, onboarding.EvProfileCompleted); err == nil {
		t.Error("expected disallowed transition to fail")
	}
	if got, _ := onboarding.Advance(onboarding.StepSettingPassword, onboarding.EvEmailNotVerified); onboarding.PathFor(got) != onboarding.PathVerify {
		t.Errorf("email not verified should lead to %s", onboarding.PathVerify)
	}
}

// TestEventFor tests decision classification.
func TestEventFor(t *testing.T) {
	cases := map[onboarding.Event]onboarding.Decision{
		onboarding.EvSignedInComplete:      onboarding.Decide(true, ""),
		onboarding.EvSignedInNoRecord:      onboarding.Decide(false, ""),
		onboarding.EvSignedInIncomplete:    onboarding.Decide(true, "details"),
		onboarding.EvPasswordStillRequired: onboarding.Decide(true, "set_password"),
	}
	for want, d := range cases {
		if got := onboarding.EventFor(d); got != want {
			t.Errorf("EventFor(%+v) = %s, want %s", d, got, want)
		}
	}
}
