package crewapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenValid reports whether an access token is present and not
// known to be expired. Tokens are never verified here; that is the API's
// job. Opaque (non-JWT) tokens and JWTs without an exp claim count as valid.
func AccessTokenValid(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return err == nil
	}
	return now.Before(exp.Time)
}
