package crewapi

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// APIError is a request the crew API answered but rejected, either with a
// non-2xx status or with an explicit "ok": false envelope.
type APIError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("crew api %s: %d %s: %s", e.Endpoint, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("crew api %s: %d: %s", e.Endpoint, e.Status, msg)
}

// ErrDecode wraps responses that could not be read as the expected shape.
var ErrDecode = errors.New("crew api: unexpected response")

var emailNotVerifiedCodes = map[string]bool{
	"EMAIL_NOT_VERIFIED":  true,
	"EMAIL_UNVERIFIED":    true,
	"NOT_VERIFIED":        true,
	"VERIFICATION_NEEDED": true,
}

var emailNotVerifiedMessage = regexp.MustCompile(`(?i)(e-?mail\b.*\b(not|un)\s*-?verified|verify your e-?mail|e-?mail verification)`)

// IsEmailNotVerified reports whether err means the account's email address
// has not been confirmed yet: HTTP 403, a known error code or a matching
// message.
func IsEmailNotVerified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusForbidden {
		return true
	}
	if emailNotVerifiedCodes[strings.ToUpper(strings.TrimSpace(apiErr.Code))] {
		return true
	}
	return emailNotVerifiedMessage.MatchString(apiErr.Message)
}

// ServerMessage returns the text the server attached to a rejection, or "".
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.TrimSpace(apiErr.Message)
	}
	return ""
}

// IsUnauthorized reports whether the server rejected the credentials or token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
