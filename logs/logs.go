// Package logs provides the per-subsystem leveled loggers used across
// the core: one backend with a rotating log file plus a rotating
// error-only file per process, and a small set of subsystem tags that can each be leveled independently at runtime.
package logs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// Level is the severity of a log line.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

// LevelFromString parses a level name, defaulting to LevelInfo for anything
// it doesn't recognize.
func LevelFromString(s string) Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	case "off":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Logger is a single subsystem's leveled sink. The zero value is a
// disabled logger that drops everything, so packages can hold a *Logger
// field and never nil-check it.
type Logger struct {
	tag   string
	level Level
	out   *log.Logger
}

// Disabled returns a Logger that discards every line. Used as the default
// before InitBackend is called, and in tests that don't care about logs.
func Disabled(tag string) *Logger {
	return &Logger{tag: tag, level: LevelOff, out: log.New(io.Discard, "", 0)}
}

// backend is shared process-wide state created by InitBackend.
type backend struct {
	rotator    *rotator.Rotator
	errRotator *rotator.Rotator
}

var activeBackend *backend

// InitBackend opens (or creates) the rotating log files used by every
// subsequent logger. It must be called once, early in main, before any
// subsystem logger is attached via New.
func InitBackend(logFile, errLogFile string) error {
	r, err := newRotator(logFile)
	if err != nil {
		return err
	}
	er, err := newRotator(errLogFile)
	if err != nil {
		return err
	}
	activeBackend = &backend{rotator: r, errRotator: er}
	return nil
}

func newRotator(path string) (*rotator.Rotator, error) {
	dir, _ := filepath.Split(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}
	return rotator.New(path, 10*1024, false, 3)
}

// CloseBackend flushes and closes the rotating log files opened by
// InitBackend. Called on shutdown and from the panic handler so the last
// lines written actually reach disk.
func CloseBackend() {
	if activeBackend == nil {
		return
	}
	activeBackend.rotator.Close()
	activeBackend.errRotator.Close()
	activeBackend = nil
}

// New creates a subsystem logger writing to stdout and, once InitBackend
// has run, to the rotating log file as well.
func New(tag string, level Level) *Logger {
	var w io.Writer = os.Stdout
	if activeBackend != nil {
		w = io.MultiWriter(os.Stdout, activeBackend.rotator)
	}
	return &Logger{
		tag:   tag,
		level: level,
		out:   log.New(w, "", log.Ldate|log.Ltime),
	}
}

// SetLevel changes the minimum severity this logger emits.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if l == nil || l.out == nil || level < l.level {
		return
	}
	l.out.Printf("[%s] %s: %s", levelStrings[level], l.tag, fmt.Sprintf(format, args...))
	if level >= LevelError && activeBackend != nil {
		fmt.Fprintf(activeBackend.errRotator, "[%s] %s: %s\n", levelStrings[level], l.tag, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Tracef(format string, args ...interface{})    { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})    { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})     { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.logf(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.logf(LevelCritical, format, args...) }
