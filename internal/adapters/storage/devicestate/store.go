// Package devicestate persists the small per-device key/value state that
// survives browser sessions: the pending-onboarding marker and the two
// favourites lists.
package devicestate

import (
	"context"
	"errors"
)

// ErrNoDevice is returned when a call carries no device id.
var ErrNoDevice = errors.New("devicestate: device id is required")

// Store persists plain-string values per device and key.
type Store interface {
	// Get returns the value and whether it exists.
	Get(ctx context.Context, deviceID, key string) (string, bool, error)
	// Set writes value, replacing any previous one.
	Set(ctx context.Context, deviceID, key, value string) error
	// Delete removes the key; deleting a missing key is not an error.
	Delete(ctx context.Context, deviceID, key string) error
}

func checkDevice(deviceID string) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	return nil
}
