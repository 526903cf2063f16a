package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
)

// DefaultLogger writes "[LEVEL] msg: err k=v ..." lines through the standard
// log package. Debug and Info go to the out writer, Warn and above to the
// err writer. Warn/Error/Fatal are coloured when colours are on.
type DefaultLogger struct {
	out       *log.Logger
	err       *log.Logger
	level     Level
	fields    Fields
	useColors bool
}

// levelColors is the ANSI prefix per level; uncoloured levels are absent
var levelColors = map[Level]string{
	WarnLevel:  ColorYellow,
	ErrorLevel: ColorRed,
	FatalLevel: ColorBold + ColorRed,
}

// NewDefaultLogger logs to stdout and stderr, coloured when stderr is a
// terminal and NO_COLOR is unset
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		out:       log.New(os.Stdout, "", log.LstdFlags),
		err:       log.New(os.Stderr, "", log.LstdFlags),
		level:     InfoLevel,
		fields:    Fields{},
		useColors: colorTerminal(os.Stderr),
	}
}

// NewWriterLogger creates an uncoloured logger writing every level to w.
// The CLI uses it to keep stdout free for results.
func NewWriterLogger(w io.Writer, level Level) *DefaultLogger {
	l := log.New(w, "", log.LstdFlags)
	return &DefaultLogger{
		out:    l,
		err:    l,
		level:  level,
		fields: Fields{},
	}
}

func colorTerminal(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (d *DefaultLogger) format(level Level, err error, msg string, extra []Fields) string {
	merged := Fields{}
	maps.Copy(merged, d.fields)
	for _, f := range extra {
		maps.Copy(merged, f)
	}

	var b strings.Builder
	b.WriteString("[" + level.String() + "] " + msg)
	if err != nil {
		b.WriteString(": " + err.Error())
	}
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}

	line := b.String()
	if color, ok := levelColors[level]; ok && d.useColors {
		line = color + line + ColorReset
	}
	return line
}

func (d *DefaultLogger) emit(level Level, err error, msg string, fields []Fields) {
	if level < d.level {
		return
	}

	dst := d.out
	if level >= WarnLevel {
		dst = d.err
	}
	dst.Println(d.format(level, err, msg, fields))

	if level == FatalLevel {
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) { d.emit(DebugLevel, nil, msg, fields) }
func (d *DefaultLogger) Info(msg string, fields ...Fields)  { d.emit(InfoLevel, nil, msg, fields) }
func (d *DefaultLogger) Warn(msg string, fields ...Fields)  { d.emit(WarnLevel, nil, msg, fields) }

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.emit(ErrorLevel, err, msg, fields)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.emit(FatalLevel, err, msg, fields)
}

// WithFields returns a copy carrying fields on every line
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	child := *d
	child.fields = Fields{}
	maps.Copy(child.fields, d.fields)
	maps.Copy(child.fields, fields)
	return &child
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything. Install it with SetGlobalLogger(nil).
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
