// Package pending reads and writes the pending-onboarding marker: the
// username of a registration that has been started on this device but
// not yet completed.
package pending

import (
	"context"
	"log/slog"

	"crewportal/internal/adapters/storage/devicestate"
	"crewportal/internal/domain/onboarding"
	"crewportal/internal/domain/session"
)

// Read returns the normalized marker, or "" when absent or unreadable.
// Storage failures are logged and read as absent.
func Read(ctx context.Context, store devicestate.Store, deviceID string) string {
	if deviceID == "" {
		return ""
	}
	v, ok, err := store.Get(ctx, deviceID, onboarding.KeyPendingUsername)
	if err != nil {
		slog.Warn("pending_marker_read_failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return session.NormalizeIdentity(v)
}

// Write stores username as the marker.
// POST: Read returns the uppercased username
func Write(ctx context.Context, store devicestate.Store, deviceID, username string) error {
	return store.Set(ctx, deviceID, onboarding.KeyPendingUsername, session.NormalizeIdentity(username))
}

// Clear removes the marker.
func Clear(ctx context.Context, store devicestate.Store, deviceID string) error {
	return store.Delete(ctx, deviceID, onboarding.KeyPendingUsername)
}
