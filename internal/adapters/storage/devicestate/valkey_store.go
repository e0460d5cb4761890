package devicestate

import (
	"context"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"
)

// keyPrefix namespaces every device key in a shared Valkey.
const keyPrefix = "crewportal:device:"

type valkeyStore struct {
	client valkey.Client
}

// NewValkeyStore returns a Store backed by Valkey string keys.
func NewValkeyStore(client valkey.Client) Store {
	return &valkeyStore{client: client}
}

// NewValkeyClient connects to the Valkey server at uri. The valkey and
// valkeys schemes are accepted as aliases of redis and rediss.
func NewValkeyClient(uri string) (valkey.Client, error) {
	opt, err := clientOption(uri)
	if err != nil {
		return nil, err
	}
	return valkey.NewClient(opt)
}

func clientOption(uri string) (valkey.ClientOption, error) {
	switch {
	case strings.HasPrefix(uri, "valkeys://"):
		uri = "rediss://" + strings.TrimPrefix(uri, "valkeys://")
	case strings.HasPrefix(uri, "valkey://"):
		uri = "redis://" + strings.TrimPrefix(uri, "valkey://")
	}
	opt, err := valkey.ParseURL(uri)
	if err != nil {
		return valkey.ClientOption{}, fmt.Errorf("invalid valkey uri: %w", err)
	}
	return opt, nil
}

// storageKey builds the namespaced key for one device value.
func storageKey(deviceID, key string) string {
	return keyPrefix + deviceID + ":" + key
}

// Get reads one value.
// POST: returns ("", false, nil) when the key does not exist
func (s *valkeyStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	if err := checkDevice(deviceID); err != nil {
		return "", false, err
	}
	value, err := s.client.Do(ctx, s.client.B().Get().Key(storageKey(deviceID, key)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("device state get %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes one value without expiry.
func (s *valkeyStore) Set(ctx context.Context, deviceID, key, value string) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	err := s.client.Do(ctx, s.client.B().Set().Key(storageKey(deviceID, key)).Value(value).Build()).Error()
	if err != nil {
		return fmt.Errorf("device state set %s: %w", key, err)
	}
	return nil
}

// Delete removes one value.
func (s *valkeyStore) Delete(ctx context.Context, deviceID, key string) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	err := s.client.Do(ctx, s.client.B().Del().Key(storageKey(deviceID, key)).Build()).Error()
	if err != nil {
		return fmt.Errorf("device state delete %s: %w", key, err)
	}
	return nil
}
