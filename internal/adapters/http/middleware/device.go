package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const deviceContextKey contextKey = "device"

// DeviceCookieName names the long-lived cookie keying per-device state.
const DeviceCookieName = "xcm_device"

// deviceCookieMaxAge is one year.
const deviceCookieMaxAge = 365 * 24 * 60 * 60

// Device returns middleware that attaches the device id to the request
// context, issuing a new one when the cookie is missing or malformed.
func Device(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(DeviceCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookieName,
					Value:    id,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					Path:     "/",
					MaxAge:   deviceCookieMaxAge,
				})
			}
			next.ServeHTTP(w, r.WithContext(ContextWithDevice(r.Context(), id)))
		})
	}
}

// DeviceFromContext returns the device id, or "".
func DeviceFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceContextKey).(string)
	return id
}

// ContextWithDevice returns a context carrying the device id.
func ContextWithDevice(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceContextKey, id)
}
