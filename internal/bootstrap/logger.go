package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

func parseLogLevel(level string) slog.Level {
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

// ProvideLogger writes JSON by default and colourised text when
// log.format is "text".
func ProvideLogger(cfg *Config) *slog.Logger {
	level := parseLogLevel(cfg.Log.Level)

	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "text") {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
