package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every derived key.
const KeySize = 32

// Key purposes. Changing one invalidates every key derived for it.
const (
	PurposeCSRF = "crewportal/csrf/v1"
)

// ErrInvalidSecret is returned when the master secret is not 64 hex characters.
var ErrInvalidSecret = errors.New("security.master_secret must be 64 hex characters (32 bytes)")

// DeriveKey derives a purpose-bound key from the master secret with HKDF-SHA256.
// In development a missing secret yields a random key, so sessions do not
// survive a restart.
// PRE: purpose is non-empty
// POST: returns KeySize bytes or an error
func (c *Config) DeriveKey(purpose string) ([]byte, error) {
	if c.Security.MasterSecret == "" {
		if c.IsProduction() {
			return nil, ErrMissingSecret
		}
		key := make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		slog.Warn("random_key_in_use", "purpose", purpose)
		return key, nil
	}

	secret, err := hex.DecodeString(c.Security.MasterSecret)
	if err != nil || len(secret) != KeySize {
		return nil, ErrInvalidSecret
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}
