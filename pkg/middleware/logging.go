package middleware

import (
	"fmt"
	"net/http"
	"time"

	"teamhub-backend/pkg/config"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger returns the request logging middleware: chi's standard logger in
// development, a JSON line per request in production.
func Logger(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.IsProduction() {
		return jsonLogger
	}
	return middleware.Logger
}

func jsonLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		userInfo := "anonymous"
		if user, ok := GetUserFromContext(r.Context()); ok && user != nil {
			userInfo = user.Email
		}

		fmt.Printf(`{"time":"%s","method":"%s","path":"%s","status":%d,"duration":"%s","user":"%s","ip":"%s","user_agent":"%s"}`+"\n",
			time.Now().Format(time.RFC3339),
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			userInfo,
			ClientIP(r),
			r.UserAgent(),
		)
	})
}

// ClientIP returns the caller's address, preferring forwarding headers
// set by proxies.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
