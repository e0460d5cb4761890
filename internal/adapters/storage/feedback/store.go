package feedback

import (
	"context"
	"errors"

	domain "crewportal/internal/domain/feedback"
)

// ErrNotFound is returned when no submission has the requested id.
var ErrNotFound = errors.New("feedback submission not found")

// Store persists feedback submissions.
type Store interface {
	Save(ctx context.Context, s domain.Submission) error
	GetByID(ctx context.Context, id string) (domain.Submission, error)
	SetMessageID(ctx context.Context, id, messageID string) error
}
