package repositories

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerLogger routes badger's printf-style logs into the application's
// slog.Logger so that store messages share the process format.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func NewBadgerLogger(log *slog.Logger) badger.Logger {
	return &badgerLogger{logger: log.With("component", "badger")}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(clean(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(clean(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(clean(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(clean(format, args...))
}

// clean drops the trailing newline badger appends to most messages.
func clean(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
