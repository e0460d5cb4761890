package crew

import (
	"errors"
	"fmt"
	"strings"
)

// Member is the crew profile record held by the API, keyed by PSN.
type Member struct {
	PSN         string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string
	Nationality string
	Passport    *Passport
	FX          *ForeignResidence
	ESTA        *ESTA
}

// Passport is the travel document sub-record.
type Passport struct {
	Number     string
	Country    string
	IssueDate  string
	ExpiryDate string
}

// ForeignResidence is the "fx" sub-record for crew living abroad.
type ForeignResidence struct {
	Country string
	City    string
	Address string
}

// ESTA is the US travel authorisation sub-record.
type ESTA struct {
	Number     string
	ExpiryDate string
}

// DisplayName returns the full name, or the PSN when no name is known.
func (m *Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.PSN
	}
	return name
}

// Section is one page of the profile wizard.
type Section string

// Section constants, in wizard order.
const (
	SectionGeneral  Section = "general"
	SectionPassport Section = "passport"
	SectionESTA     Section = "esta"
)

// Sections lists the wizard pages in order.
var Sections = []Section{SectionGeneral, SectionPassport, SectionESTA}

// ErrUnknownSection is returned for a section outside Sections.
var ErrUnknownSection = errors.New("unknown profile section")

// ParseSection maps a form value to a section; empty means the first one.
func ParseSection(s string) (Section, error) {
	if s == "" {
		return SectionGeneral, nil
	}
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", ErrUnknownSection
}

// Next returns the following section and false when sec is the last one.
func (sec Section) Next() (Section, bool) {
	for i, s := range Sections {
		if s == sec && i+1 < len(Sections) {
			return Sections[i+1], true
		}
	}
	return "", false
}

// requiredFields lists the flat form fields each section cannot save without.
var requiredFields = map[Section][]string{
	SectionGeneral:  {"first_name", "last_name", "date_of_birth", "nationality"},
	SectionPassport: {"passport_number", "passport_country", "passport_expiry"},
	SectionESTA:     {},
}

// Fields lists the flat form fields each section submits.
var Fields = map[Section][]string{
	SectionGeneral:  {"first_name", "last_name", "email", "phone", "date_of_birth", "nationality", "fx_country", "fx_city", "fx_address"},
	SectionPassport: {"passport_number", "passport_country", "passport_issue", "passport_expiry"},
	SectionESTA:     {"esta_number", "esta_expiry"},
}

// ValidateSection checks the flat record of one wizard page.
// PRE: sec is one of Sections
// POST: returns an error naming the first missing field, or nil
func ValidateSection(sec Section, record map[string]string) error {
	for _, f := range requiredFields[sec] {
		if strings.TrimSpace(record[f]) == "" {
			return fmt.Errorf("%s is required", strings.ReplaceAll(f, "_", " "))
		}
	}
	return nil
}

// SectionRecord flattens the member fields of one section, for prefilling
// the wizard form.
func (m *Member) SectionRecord(sec Section) map[string]string {
	rec := map[string]string{}
	if m == nil {
		return rec
	}
	switch sec {
	case SectionGeneral:
		rec["first_name"] = m.FirstName
		rec["last_name"] = m.LastName
		rec["email"] = m.Email
		rec["phone"] = m.Phone
		rec["date_of_birth"] = m.DateOfBirth
		rec["nationality"] = m.Nationality
		if m.FX != nil {
			rec["fx_country"] = m.FX.Country
			rec["fx_city"] = m.FX.City
			rec["fx_address"] = m.FX.Address
		}
	case SectionPassport:
		if m.Passport != nil {
			rec["passport_number"] = m.Passport.Number
			rec["passport_country"] = m.Passport.Country
			rec["passport_issue"] = m.Passport.IssueDate
			rec["passport_expiry"] = m.Passport.ExpiryDate
		}
	case SectionESTA:
		if m.ESTA != nil {
			rec["esta_number"] = m.ESTA.Number
			rec["esta_expiry"] = m.ESTA.ExpiryDate
		}
	}
	return rec
}
