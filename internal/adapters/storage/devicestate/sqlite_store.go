package devicestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	storage "crewportal/internal/adapters/storage"
)

type sqliteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore returns a Store backed by the device_state table.
func NewSQLiteStore(db storage.SQLDB) Store {
	return &sqliteStore{db: db}
}

// Get reads one value.
// PRE: deviceID and key are non-empty
// POST: returns ("", false, nil) when the key was never written
func (s *sqliteStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	if err := checkDevice(deviceID); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM device_state WHERE device_id = ? AND key = ?`,
		deviceID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("device state get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts one value.
// PRE: deviceID and key are non-empty
// POST: exactly one row exists for (deviceID, key)
func (s *sqliteStore) Set(ctx context.Context, deviceID, key, value string) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_state (device_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		deviceID, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("device state set %s: %w", key, err)
	}
	return nil
}

// Delete removes one value.
// POST: no row exists for (deviceID, key)
func (s *sqliteStore) Delete(ctx context.Context, deviceID, key string) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM device_state WHERE device_id = ? AND key = ?`,
		deviceID, key,
	); err != nil {
		return fmt.Errorf("device state delete %s: %w", key, err)
	}
	return nil
}
