package feedback

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxSummaryLength = 120
	MaxMessageLength = 4000
)

// Domain errors
var (
	ErrEmptySummary   = errors.New("summary is required")
	ErrEmptyMessage   = errors.New("message is required")
	ErrSummaryTooLong = errors.New("summary cannot exceed 120 characters")
	ErrMessageTooLong = errors.New("message cannot exceed 4000 characters")
)

// Submission is a "report a problem" note sent from the portal.
// INVARIANT: Submissions never contain tokens, passwords or raw session data.
type Submission struct {
	ID          string
	PSN         string
	Mode        string
	Summary     string
	Message     string
	Route       string
	UserAgent   string
	SubmittedAt time.Time
	MessageID   string
}

// Validate checks that the required fields are present and bounded.
// PRE: none
// POST: returns error if Summary or Message is empty or too long
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return ErrEmptySummary
	}
	if strings.TrimSpace(s.Message) == "" {
		return ErrEmptyMessage
	}
	if len(s.Summary) > MaxSummaryLength {
		return ErrSummaryTooLong
	}
	if len(s.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
