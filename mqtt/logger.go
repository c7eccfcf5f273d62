package mqtt

import (
	"context"
	"fmt"
	"log/slog"
)

// pahoLogger routes paho's internal logging to slog at a fixed level.
type pahoLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func newPahoLogger(logger *slog.Logger, level slog.Level) *pahoLogger {
	return &pahoLogger{logger: logger, level: level}
}

func (l *pahoLogger) Println(v ...any) {
	l.print(fmt.Sprint(v...))
}

func (l *pahoLogger) Printf(format string, v ...any) {
	l.print(fmt.Sprintf(format, v...))
}

func (l *pahoLogger) print(msg string) {
	l.logger.Log(context.Background(), l.level, msg)
}
