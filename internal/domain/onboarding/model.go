package onboarding

import (
	"errors"
	"strings"

	"crewportal/internal/domain/session"
)

// KeyPendingUsername is the device-state key of the pending-onboarding
// marker. It is read back across releases and must not change.
const KeyPendingUsername = "xcm.pendingUsername"

// Page paths of the onboarding and login flow.
const (
	PathHome          = session.HomePath
	PathLogin         = "/login"
	PathLoginRetry    = "/login/retry"
	PathRegister      = "/register"
	PathVerify        = "/register/verify"
	PathSetPassword   = "/register/password"
	PathProfileWizard = "/profile/wizard"
)

// FlowPaths are the pages that belong to the registration and login flow.
// Guards never hijack a navigation to one of these.
var FlowPaths = []string{
	PathRegister,
	PathVerify,
	PathSetPassword,
	PathLogin,
	PathProfileWizard,
}

// IsFlowPath reports whether path is one of FlowPaths or below one.
func IsFlowPath(path string) bool {
	for _, p := range FlowPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Employer codes
const (
	EmployerKLM       = "KLM"
	EmployerTransavia = "HV"
)

// Employer describes the registration rules of one airline.
type Employer struct {
	Code          string
	Name          string
	RequiresEmail bool
	EmailDomain   string
}

// Employers lists the supported airlines keyed by code.
var Employers = map[string]Employer{
	EmployerKLM:       {Code: EmployerKLM, Name: "KLM"},
	EmployerTransavia: {Code: EmployerTransavia, Name: "Transavia", RequiresEmail: true, EmailDomain: "transavia.com"},
}

// LookupEmployer finds an employer by code or name, case-insensitively.
func LookupEmployer(company string) (Employer, bool) {
	key := strings.ToUpper(strings.TrimSpace(company))
	if emp, ok := Employers[key]; ok {
		return emp, true
	}
	for _, emp := range Employers {
		if strings.ToUpper(emp.Name) == key {
			return emp, true
		}
	}
	return Employer{}, false
}

// Validation errors
var (
	ErrUnknownEmployer     = errors.New("please choose your airline")
	ErrMissingJob          = errors.New("please choose your job")
	ErrInvalidStaffNumber  = errors.New("staff number must be 5 or 6 digits")
	ErrMissingEmail        = errors.New("please enter your company email name")
	ErrContractNotAccepted = errors.New("please confirm the crew contract terms")
)

// Registration is the input of the registration start step.
type Registration struct {
	Company          string
	Job              string
	StaffNumber      string
	EmailLocalPart   string
	ContractAccepted bool
}

// Validate checks the registration against the employer rules.
// PRE: none
// POST: returns the first failing rule, or nil
func (r Registration) Validate() error {
	emp, ok := LookupEmployer(r.Company)
	if !ok {
		return ErrUnknownEmployer
	}
	if strings.TrimSpace(r.Job) == "" {
		return ErrMissingJob
	}
	if !isStaffNumber(strings.TrimSpace(r.StaffNumber)) {
		return ErrInvalidStaffNumber
	}
	if emp.RequiresEmail && strings.TrimSpace(r.EmailLocalPart) == "" {
		return ErrMissingEmail
	}
	if !r.ContractAccepted {
		return ErrContractNotAccepted
	}
	return nil
}

// Username derives the canonical login name: employer code followed by
// the staff number, uppercased.
// PRE: Validate returned nil
func (r Registration) Username() string {
	emp, _ := LookupEmployer(r.Company)
	return strings.ToUpper(emp.Code + strings.TrimSpace(r.StaffNumber))
}

// EmailLocalPartFor returns the local part to send, or "" when the
// employer does not take a separate email.
func (r Registration) EmailLocalPartFor() string {
	emp, _ := LookupEmployer(r.Company)
	if !emp.RequiresEmail {
		return ""
	}
	return strings.TrimSpace(r.EmailLocalPart)
}

func isStaffNumber(s string) bool {
	if len(s) != 5 && len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Next-step values returned by the member status endpoint.
const (
	NextStepSetPassword = "set_password"
	NextStepDetails     = "details"
)

// Decision is where the post-login sequence sends the user.
type Decision struct {
	Path   string
	Reason session.RouteReason
}

// Decide maps the post-login checks to a destination.
// A missing crew record always means first-time setup; otherwise the
// status next_step chooses, and anything unrecognised is fully onboarded.
func Decide(crewExists bool, nextStep string) Decision {
	if !crewExists {
		return Decision{Path: PathProfileWizard, Reason: session.ReasonNone}
	}
	switch strings.TrimSpace(nextStep) {
	case NextStepSetPassword:
		return Decision{Path: PathSetPassword, Reason: session.ReasonPasswordRequired}
	case NextStepDetails:
		return Decision{Path: PathProfileWizard, Reason: session.ReasonProfileIncomplete}
	default:
		return Decision{Path: PathHome, Reason: session.ReasonNone}
	}
}
