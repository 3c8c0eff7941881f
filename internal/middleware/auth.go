package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dukerupert/praxisbackup/internal/auth"
)

// RequireCronSecret guards operator endpoints with a bearer secret. When
// required is false (outside production) requests pass without one. A
// required but empty secret rejects every request.
func RequireCronSecret(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.Caller{Method: auth.MethodOpen, RemoteIP: RealIP(r)}

			token, ok := bearerToken(r)
			switch {
			case ok && secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1:
				caller.Method = auth.MethodBearer
			case required:
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}
