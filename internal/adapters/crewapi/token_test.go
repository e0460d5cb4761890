package crewapi_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewportal/internal/adapters/crewapi"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

// TestAccessTokenValid tests expiry handling for JWT and opaque tokens.
func TestAccessTokenValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", false},
		{"opaque", "d41d8cd98f00b204e9800998ecf8427e", true},
		{"jwt without exp", signed(t, jwt.MapClaims{"sub": "KLM12345"}), true},
		{"jwt not yet expired", signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), true},
		{"jwt expired", signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), false},
		{"jwt malformed exp", signed(t, jwt.MapClaims{"exp": "tomorrow"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crewapi.AccessTokenValid(tt.token, now))
		})
	}
}
