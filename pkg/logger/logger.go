package logger

import (
	"log"
	"log/slog"
	"os"
)

// New returns a *log.Logger for code that runs before slog is configured,
// such as config loading. Lines go to stderr at warn level tagged with component.
func New(component string) *log.Logger {
	handler := slog.NewTextHandler(os.Stderr, nil).WithAttrs([]slog.Attr{slog.String("component", component)})
	return slog.NewLogLogger(handler, slog.LevelWarn)
}
