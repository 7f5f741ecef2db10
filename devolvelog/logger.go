// Package devolvelog is the injected logging sink used by the boss, the
// listener, and every worker proxy. It replaces the "logger as global
// state" pattern with a small struct that has the lifecycle the design
// notes call for: construct once, write many times, no process-wide state
// required for correctness.
package devolvelog

import (
	"io"
	"log"
	"os"
)

// Logger is a leveled sink. The zero value is not usable; use New or
// Default.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	fatal *log.Logger
}

// New builds a Logger writing info/warn/error/fatal lines to the given
// writers, matching the prefix/flag style the rest of the pack uses for its
// package-level loggers.
func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime
	return &Logger{
		info:  log.New(out, "INFO:  ", flags),
		warn:  log.New(errOut, "WARN:  ", flags),
		error: log.New(errOut, "ERROR: ", flags),
		fatal: log.New(errOut, "FATAL: ", flags),
	}
}

var std = New(os.Stdout, os.Stderr)

// Default returns the package-level logger used by CLI entry points that
// don't need an injected instance.
func Default() *Logger { return std }

func (l *Logger) Info(format string, v ...interface{})  { l.info.Printf(format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.warn.Printf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.error.Printf(format, v...) }

// Fatal logs and exits the process with status 1. Reserved for
// configuration errors detected before any goroutine is spawned.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.fatal.Printf(format, v...)
	os.Exit(1)
}

func Info(format string, v ...interface{})  { std.Info(format, v...) }
func Warn(format string, v ...interface{})  { std.Warn(format, v...) }
func Error(format string, v ...interface{}) { std.Error(format, v...) }
func Fatal(format string, v ...interface{}) { std.Fatal(format, v...) }
