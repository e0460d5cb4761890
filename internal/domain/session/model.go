package session

import (
	"log/slog"
	"strings"
	"unicode"
)

// Mode is the authentication mode of a browser session.
type Mode string

// Mode constants
const (
	ModeGuest  Mode = "guest"
	ModeMember Mode = "member"
)

// RouteReason records why the last forced redirect happened.
type RouteReason string

// RouteReason constants
const (
	ReasonNone              RouteReason = "none"
	ReasonPasswordRequired  RouteReason = "password_required"
	ReasonProfileIncomplete RouteReason = "profile_incomplete"
	ReasonDetailsSaved      RouteReason = "details_saved"
)

// HomePath is where a reset session resumes after login.
const HomePath = "/"

// IsLocked reports whether the reason pins the user to the onboarding flow.
func (r RouteReason) IsLocked() bool {
	return r == ReasonPasswordRequired || r == ReasonProfileIncomplete
}

// User is the identity record merged from the login response plus the
// locally derived staff fields.
type User struct {
	Username      string
	StaffIdentity string
	StaffNumber   string
	Name          string
	Email         string
	Company       string
	Job           string
	// Extra carries server fields the portal does not model.
	Extra map[string]string
}

// NewUser derives StaffIdentity and StaffNumber from the username.
// PRE: username is the server-side login name
// POST: StaffIdentity is the uppercased username; StaffNumber is its trailing digit run
func NewUser(username string) User {
	username = strings.TrimSpace(username)
	return User{
		Username:      username,
		StaffIdentity: strings.ToUpper(username),
		StaffNumber:   TrailingDigits(username),
	}
}

// TrailingDigits returns the run of digits at the end of s, or "".
func TrailingDigits(s string) string {
	end := len(s)
	start := end
	for start > 0 && unicode.IsDigit(rune(s[start-1])) {
		start--
	}
	return s[start:end]
}

// NormalizeIdentity trims and uppercases an identity for comparison.
func NormalizeIdentity(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Session is the per-browser state the portal holds for the lifetime of
// a browser session. It is never persisted.
type Session struct {
	Mode               Mode
	User               *User
	AccessToken        string
	RefreshToken       string
	RouteReason        RouteReason
	OnboardingUsername string
	LoginReturnTo      string
}

// Guest returns a freshly reset guest session.
func Guest() Session {
	var s Session
	s.ResetToGuestState()
	return s
}

// SetAuth replaces the whole session with next.
// POST: no field of the previous session survives
func (s *Session) SetAuth(next Session) {
	if next.User != nil {
		u := *next.User
		next.User = &u
	}
	*s = next
}

// ResetToGuestState clears identity and tokens. It never navigates.
// POST: Mode is guest, User is nil, tokens empty, RouteReason none,
// OnboardingUsername empty, LoginReturnTo is the home path
func (s *Session) ResetToGuestState() {
	*s = Session{
		Mode:          ModeGuest,
		RouteReason:   ReasonNone,
		LoginReturnTo: HomePath,
	}
}

// PSN returns the canonical staff identity used as the key in API calls.
// INVARIANT: Session fields are not mutated
func (s Session) PSN() string {
	if s.User == nil {
		return ""
	}
	if id := NormalizeIdentity(s.User.StaffIdentity); id != "" {
		return id
	}
	return NormalizeIdentity(s.User.Username)
}

// AuthHeader returns the bearer header for the current access token,
// or an empty map when there is none.
func (s Session) AuthHeader() map[string]string {
	if s.AccessToken == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + s.AccessToken}
}

// IsMember reports whether the session may be treated as a member.
// A member session without a PSN is a contract breach: it is logged and
// treated as guest.
func (s Session) IsMember() bool {
	if s.Mode != ModeMember {
		return false
	}
	if s.PSN() == "" {
		slog.Error("session_contract_breach", "reason", "member_without_psn")
		return false
	}
	return true
}

// HasUser reports whether any user record is attached, regardless of mode.
func (s Session) HasUser() bool {
	return s.User != nil
}

// IsLocked reports whether the session is pinned to the onboarding flow.
func (s Session) IsLocked() bool {
	return s.RouteReason.IsLocked()
}

// StaffNumber returns the staff number of the attached user, if any.
func (s Session) StaffNumber() string {
	if s.User == nil {
		return ""
	}
	return s.User.StaffNumber
}
