package auth

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// remoteAddr prefers the proxy headers, the planning api normally runs behind
// the frontend's reverse proxy.
func remoteAddr(r *http.Request) string {
	for _, header := range []string{"X-Real-Ip", "X-Forwarded-For"} {
		if value := r.Header.Get(header); value != "" {
			first, _, _ := strings.Cut(value, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func routeAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key != "*" {
				attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
			}
		}
	}
	for key, values := range r.URL.Query() {
		attrs = append(attrs, slog.String(key, strings.Join(values, ";")))
	}
	return attrs
}

// AuditLogger writes one json line per authenticated request, after the
// handler has run so that the outcome is recorded.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		if status == http.StatusForbidden {
			level = slog.LevelWarn
		}

		log.logger.Log(r.Context(), level, "audit",
			"username", user.Username,
			"role", user.Role,
			"sysadmin", user.IsSysadmin,
			"remote_addr", remoteAddr(r),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			slog.Group("params", routeAttrs(r)...),
		)
	})
}
