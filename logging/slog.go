package logging

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// SlogLogger adapts a *slog.Logger to the Logger interface so the pipeline
// can feed an application's existing structured logger.
type SlogLogger struct {
	logger *slog.Logger
	level  *atomic.Int64
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	lvl := &atomic.Int64{}
	lvl.Store(int64(InfoLevel))
	return &SlogLogger{logger: l, level: lvl}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func toAttrs(err error, fields []Fields) []any {
	var attrs []any
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for _, f := range fields {
		for k, v := range f {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	return attrs
}

func (s *SlogLogger) emit(level Level, err error, msg string, fields []Fields) {
	if level < Level(s.level.Load()) {
		return
	}
	s.logger.Log(context.Background(), slogLevel(level), msg, toAttrs(err, fields)...)
}

func (s *SlogLogger) Debug(msg string, fields ...Fields) { s.emit(DebugLevel, nil, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Fields)  { s.emit(InfoLevel, nil, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Fields)  { s.emit(WarnLevel, nil, msg, fields) }

func (s *SlogLogger) Error(err error, msg string, fields ...Fields) {
	s.emit(ErrorLevel, err, msg, fields)
}

// Fatal logs at error level and exits; slog has no fatal level.
func (s *SlogLogger) Fatal(err error, msg string, fields ...Fields) {
	s.emit(FatalLevel, err, msg, fields)
	os.Exit(1)
}

func (s *SlogLogger) WithFields(fields Fields) Logger {
	return &SlogLogger{
		logger: s.logger.With(toAttrs(nil, []Fields{fields})...),
		level:  s.level,
	}
}

func (s *SlogLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return s.WithFields(fields)
	}
	return s
}

func (s *SlogLogger) SetLevel(level Level) {
	s.level.Store(int64(level))
}
