package crewapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/flight"
	"crewportal/internal/domain/session"
)

// flexString accepts a JSON string, number or bool and keeps its text.
// null decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("%w: object where a scalar was expected", ErrDecode)
	}
	*f = flexString(b)
	return nil
}

// flexBool accepts true/false, 1/0 and their string forms. Anything else,
// including null, is false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	switch strings.ToLower(string(s)) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// envelope is the status part every PHP endpoint may return.
type envelope struct {
	OK      *flexBool  `json:"ok"`
	Success *flexBool  `json:"success"`
	Message flexString `json:"message"`
	Error   flexString `json:"error"`
	Code    flexString `json:"code"`
}

// rejected reports whether the body explicitly signals failure.
func (e envelope) rejected() bool {
	return (e.OK != nil && !bool(*e.OK)) || (e.Success != nil && !bool(*e.Success))
}

// text picks the human-readable part: message first, then error.
func (e envelope) text() string {
	if e.Message != "" {
		return string(e.Message)
	}
	return string(e.Error)
}

// RegisterRequest is the registration start payload.
type RegisterRequest struct {
	Company          string `json:"company"`
	Job              string `json:"job"`
	StaffNumber      string `json:"staffNumber"`
	HVEmailLocalPart string `json:"hvEmailLocalPart,omitempty"`
}

// Credentials is the login payload. rememberDevice is always sent.
type Credentials struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	RememberDevice bool   `json:"rememberDevice"`
}

// SetPasswordRequest is the set-password payload.
type SetPasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the decoded phase-1 login response.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         session.User
}

type loginResponse struct {
	AccessToken  flexString                `json:"accessToken"`
	RefreshToken flexString                `json:"refreshToken"`
	User         map[string]json.RawMessage `json:"user"`
}

// knownUserFields are mapped onto session.User; everything else lands in Extra.
var knownUserFields = map[string]bool{
	"username": true, "name": true, "email": true, "company": true, "job": true,
	"staff_identity": true, "staff_number": true,
}

// toUser merges the server user record with the locally derived staff
// fields. The submitted username is used when the server omits one.
func (r loginResponse) toUser(submitted string) session.User {
	field := func(name string) string {
		var s flexString
		if raw, ok := r.User[name]; ok {
			if err := json.Unmarshal(raw, &s); err != nil {
				return ""
			}
		}
		return string(s)
	}

	username := field("username")
	if username == "" {
		username = submitted
	}
	u := session.NewUser(username)
	u.Name = field("name")
	u.Email = field("email")
	u.Company = field("company")
	u.Job = field("job")

	for k, raw := range r.User {
		if knownUserFields[k] {
			continue
		}
		var s flexString
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if u.Extra == nil {
			u.Extra = map[string]string{}
		}
		u.Extra[k] = string(s)
	}
	return u
}

type psnRequest struct {
	PSN string `json:"psn"`
}

type existsResponse struct {
	Exists flexBool `json:"exists"`
}

type statusResponse struct {
	NextStep flexString `json:"next_step"`
}

type passportRecord struct {
	Number     flexString `json:"number"`
	Country    flexString `json:"country"`
	IssueDate  flexString `json:"issue_date"`
	ExpiryDate flexString `json:"expiry_date"`
}

type fxRecord struct {
	Country flexString `json:"country"`
	City    flexString `json:"city"`
	Address flexString `json:"address"`
}

type estaRecord struct {
	Number     flexString `json:"number"`
	ExpiryDate flexString `json:"expiry_date"`
}

type memberRecord struct {
	PSN         flexString      `json:"psn"`
	FirstName   flexString      `json:"first_name"`
	LastName    flexString      `json:"last_name"`
	Email       flexString      `json:"email"`
	Phone       flexString      `json:"phone"`
	DateOfBirth flexString      `json:"date_of_birth"`
	Nationality flexString      `json:"nationality"`
	Passport    *passportRecord `json:"passport"`
	FX          *fxRecord       `json:"fx"`
	ESTA        *estaRecord     `json:"esta"`
}

type profileResponse struct {
	Member *memberRecord `json:"member"`
}

func (m *memberRecord) toMember(psn string) *crew.Member {
	if m == nil {
		return nil
	}
	out := &crew.Member{
		PSN:         session.NormalizeIdentity(string(m.PSN)),
		FirstName:   string(m.FirstName),
		LastName:    string(m.LastName),
		Email:       string(m.Email),
		Phone:       string(m.Phone),
		DateOfBirth: string(m.DateOfBirth),
		Nationality: string(m.Nationality),
	}
	if out.PSN == "" {
		out.PSN = session.NormalizeIdentity(psn)
	}
	if p := m.Passport; p != nil {
		out.Passport = &crew.Passport{
			Number:     string(p.Number),
			Country:    string(p.Country),
			IssueDate:  string(p.IssueDate),
			ExpiryDate: string(p.ExpiryDate),
		}
	}
	if fx := m.FX; fx != nil {
		out.FX = &crew.ForeignResidence{
			Country: string(fx.Country),
			City:    string(fx.City),
			Address: string(fx.Address),
		}
	}
	if e := m.ESTA; e != nil {
		out.ESTA = &crew.ESTA{Number: string(e.Number), ExpiryDate: string(e.ExpiryDate)}
	}
	return out
}

type flightRecord struct {
	Number      flexString `json:"number"`
	Origin      flexString `json:"origin"`
	Destination flexString `json:"destination"`
	Departure   flexString `json:"departure"`
	Arrival     flexString `json:"arrival"`
	Listing     flexString `json:"listing"`
}

type nextFlightResponse struct {
	Flight *flightRecord `json:"flight"`
}

func (f *flightRecord) toFlight() flight.Flight {
	if f == nil {
		return flight.Flight{}
	}
	return flight.Flight{
		Number:      string(f.Number),
		Origin:      string(f.Origin),
		Destination: string(f.Destination),
		Departure:   parseTime(string(f.Departure)),
		Arrival:     parseTime(string(f.Arrival)),
		Listing:     string(f.Listing),
	}
}

// parseTime accepts RFC 3339, the PHP "Y-m-d H:i:s" layout and unix seconds.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}
