package slack

import (
	"log/slog"
	"strings"
)

// slackLogger routes slack-go's internal debug output into slog.
type slackLogger struct {
	logger *slog.Logger
}

func newSlackLogger(log *slog.Logger) *slackLogger {
	if log == nil {
		log = slog.Default()
	}
	return &slackLogger{logger: log.With(slog.String("component", "slack-go"))}
}

func (l *slackLogger) Output(_ int, s string) error {
	l.logger.Debug(strings.TrimSpace(s))
	return nil
}
