package middleware

import (
	"crypto/subtle"
	"net/http"

	"jine-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// APIKeyMiddleware guards admin routes. The key is accepted from the
// X-API-Key header or, for older clients, the Authorization header. When no
// key is configured every request is rejected so admin routes never run
// open.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if apiKey == "" {
				log.Warnf("%s Admin request to %s rejected: no API key configured", logcolors.LogAPIKey, path)
				writeUnauthorized(w, "API key not configured", "Set API_KEY to enable admin endpoints")
				return
			}

			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				providedKey = r.Header.Get("Authorization")
			}
			if providedKey == "" {
				log.Warnf("%s Missing API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, path)
				writeUnauthorized(w, "API key required", "Provide a valid API key via X-API-Key header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				log.Warnf("%s Invalid API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, path)
				writeUnauthorized(w, "Invalid API key", "The provided API key is not valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + errMsg + `","message":"` + message + `"}`))
}
