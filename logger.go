package modbus

import (
	"fmt"
	"os"
	"time"
)

// LeveledLogger is the logging sink accepted by both the client and server
// packages. Implementations are expected to be safe for concurrent use.
type LeveledLogger interface {
	Info(msg string)
	Infof(format string, args ...interface{})
	Warning(msg string)
	Warningf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	Fatal(msg string)
	Fatalf(format string, args ...interface{})
}

var _ LeveledLogger = (*StdLogger)(nil)

// StdLogger is the default LeveledLogger: it timestamps each line with a
// caller-supplied prefix and writes to stdout (info/warning) or stderr
// (error/fatal).
type StdLogger struct {
	prefix string
}

// NewStdLogger returns a StdLogger tagging every line with prefix.
func NewStdLogger(prefix string) *StdLogger {
	return &StdLogger{prefix: prefix}
}

func (l *StdLogger) Info(msg string) { l.write(os.Stdout, "info", msg) }
func (l *StdLogger) Infof(format string, args ...interface{}) {
	l.write(os.Stdout, "info", fmt.Sprintf(format, args...))
}

func (l *StdLogger) Warning(msg string) { l.write(os.Stdout, "warn", msg) }
func (l *StdLogger) Warningf(format string, args ...interface{}) {
	l.write(os.Stdout, "warn", fmt.Sprintf(format, args...))
}

func (l *StdLogger) Error(msg string) { l.write(os.Stderr, "error", msg) }
func (l *StdLogger) Errorf(format string, args ...interface{}) {
	l.write(os.Stderr, "error", fmt.Sprintf(format, args...))
}

func (l *StdLogger) Fatal(msg string) {
	l.Error(msg)
	os.Exit(1)
}

func (l *StdLogger) Fatalf(format string, args ...interface{}) {
	l.Errorf(format, args...)
	os.Exit(1)
}

func (l *StdLogger) write(w *os.File, level, msg string) {
	fmt.Fprintf(w, "%s %s [%s]: %s\n", time.Now().Format("2006/01/02 15:04:05"), l.prefix, level, msg)
}
