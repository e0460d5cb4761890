package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	storage "crewportal/internal/adapters/storage"
	domain "crewportal/internal/domain/feedback"
)

type sqliteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore returns a Store backed by SQLite.
func NewSQLiteStore(db storage.SQLDB) Store {
	return &sqliteStore{db: db}
}

// Save persists a Submission.
// PRE: s.ID is non-empty and unique
// POST: row inserted into feedback
func (s *sqliteStore) Save(ctx context.Context, sub domain.Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			id, psn, mode, summary, message, route, user_agent, submitted_at, message_id
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		sub.ID,
		sub.PSN,
		sub.Mode,
		sub.Summary,
		sub.Message,
		sub.Route,
		sub.UserAgent,
		sub.SubmittedAt.UTC().Format(time.RFC3339),
		sub.MessageID,
	)
	if err != nil {
		return fmt.Errorf("feedback save: %w", err)
	}
	return nil
}

// GetByID retrieves a Submission by its ID.
// PRE: id is non-empty
// POST: returns the submission or ErrNotFound
func (s *sqliteStore) GetByID(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, psn, mode, summary, message, route, user_agent, submitted_at, message_id
		FROM feedback WHERE id = ?`, id)

	var sub domain.Submission
	var submittedAt string
	err := row.Scan(
		&sub.ID,
		&sub.PSN,
		&sub.Mode,
		&sub.Summary,
		&sub.Message,
		&sub.Route,
		&sub.UserAgent,
		&submittedAt,
		&sub.MessageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("feedback get: %w", err)
	}
	sub.SubmittedAt, _ = time.Parse(time.RFC3339, submittedAt)
	return sub, nil
}

// SetMessageID records the delivery id returned by the mail provider.
// POST: message_id updated, or ErrNotFound
func (s *sqliteStore) SetMessageID(ctx context.Context, id, messageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE feedback SET message_id = ? WHERE id = ?`, messageID, id)
	if err != nil {
		return fmt.Errorf("feedback set message id: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
