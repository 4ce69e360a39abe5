package cli

import (
	"io"
	"log/slog"
	"strings"
)

const logLevelEnv = "RFN_LOG_LEVEL"

// newLogger builds the CLI's text logger on w. level is DEBUG, INFO, WARN or
// ERROR; anything else means WARN so a plain call prints only its result.
func newLogger(w io.Writer, level string) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		lv.Set(slog.LevelDebug)
	case "INFO":
		lv.Set(slog.LevelInfo)
	case "ERROR":
		lv.Set(slog.LevelError)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}
