package logging

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	SYSTEM LogCode = "SYSTEM"

	AUTH_LOGIN  LogCode = "AUTH_LOGIN"
	AUTH_LOGOUT LogCode = "AUTH_LOGOUT"
	AUTH_USERS  LogCode = "AUTH_USERS"

	PROJECT_REGISTER LogCode = "PROJECT_REGISTER"
	PROJECT_STATUS   LogCode = "PROJECT_STATUS"

	COLLABORATION_PROPOSE  LogCode = "COLLABORATION_PROPOSE"
	COLLABORATION_DECIDE   LogCode = "COLLABORATION_DECIDE"
	COLLABORATION_COMPLETE LogCode = "COLLABORATION_COMPLETE"

	OBSERVATION LogCode = "OBSERVATION"

	WORKFLOW LogCode = "WORKFLOW"
)

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogging sends json logs to jsonOut and human readable logs to textOut.
// The json records carry service_type so they can be filtered once shipped.
func InitLogging(jsonOut, textOut io.Writer, serviceType string, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}

	var jsonHandler slog.Handler = slog.NewJSONHandler(jsonOut, &slog.HandlerOptions{Level: level, AddSource: true})
	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{
		slog.String("service_type", serviceType),
	})
	textHandler := slog.NewTextHandler(textOut, opts)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
}
