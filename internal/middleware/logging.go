package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/praxisbackup/internal/auth"
)

// responseMeter records what a handler wrote.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer so WebSocket upgrades can hijack it.
func (m *responseMeter) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}

// RequestLogger logs each request once it completes. Requests that passed
// the cron secret guard also carry how they were authorized; rejected and
// public requests log auth="none".
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, caller := auth.Track(r.Context())
			meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(meter, r.WithContext(ctx))

			method := string(caller.Method)
			if method == "" {
				method = "none"
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", meter.status),
				slog.Int("bytes", meter.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", RealIP(r)),
				slog.String("auth", method),
			}

			level := slog.LevelInfo
			switch {
			case meter.status >= 500:
				level = slog.LevelError
			case meter.status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctx, level, "request", attrs...)
		})
	}
}
