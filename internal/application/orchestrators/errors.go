package orchestrators

import (
	"errors"

	"crewportal/internal/adapters/crewapi"
)

// Flow errors. Each is a distinct bucket the pages render differently.
var (
	ErrRegistrationFailed     = errors.New("we could not start your registration, please try again")
	ErrNoOnboardingIdentity   = errors.New("we could not find your registration, please start again")
	ErrPasswordRequired       = errors.New("please enter a password")
	ErrPasswordMismatch       = errors.New("the passwords do not match")
	ErrSetPasswordFailed      = errors.New("failed to set password")
	ErrPasswordSetLoginFailed = errors.New("your password is set, but signing in failed; please use the login screen")
	ErrEmailNotVerified       = errors.New("your email address is not verified yet; please use the link in the email we sent you")
	ErrMissingCredentials     = errors.New("please enter your username and password")
	ErrAuthFailed             = errors.New("sign in failed")
	ErrPostLoginChecks        = errors.New("post-login checks failed, please try again")
	ErrNotSignedIn            = errors.New("please sign in first")
	ErrProfileSaveFailed      = errors.New("we could not save your details, please try again")
	ErrBusy                   = errors.New("this request is already being processed")
)

// ServerMessageError carries server-provided text for a failure whose
// text is actionable by the user. Kind is one of the flow errors above.
type ServerMessageError struct {
	Kind    error
	Message string
}

func (e *ServerMessageError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *ServerMessageError) Unwrap() error {
	return e.Kind
}

// withServerMessage wraps kind with the server's text from cause, if any.
func withServerMessage(kind, cause error) error {
	return &ServerMessageError{Kind: kind, Message: crewapi.ServerMessage(cause)}
}
