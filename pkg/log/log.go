// Package log writes the colored status lines of all commands and can
// hex-dump a connection's traffic to a trace file.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var yellow = color.New(color.FgYellow).FprintfFunc()
var faint = color.New(color.Faint).FprintfFunc()

// std serves code that runs before a command has built its own logger.
var std = NewLogger(false)

// ErrorMsg reports an error on stderr.
func ErrorMsg(format string, a ...interface{}) { std.ErrorMsg(format, a...) }

// Logger writes colored messages to a single output. Verbose messages are
// only written when verbose logging is enabled.
// A nil *Logger discards everything, so components can log unconditionally.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewLogger creates a logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return NewLoggerTo(os.Stderr, verbose)
}

// NewLoggerTo creates a logger writing to out.
func NewLoggerTo(out io.Writer, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

// Verbose reports whether verbose messages are written.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// InfoMsg writes an informational message.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	l.write(blue, "[+] "+format, a...)
}

// WarnMsg writes a warning.
func (l *Logger) WarnMsg(format string, a ...interface{}) {
	l.write(yellow, "[~] Warning: "+format, a...)
}

// ErrorMsg writes an error message.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	l.write(red, "[!] Error: "+format, a...)
}

// VerboseMsg writes a diagnostic message if verbose logging is on.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.write(faint, "[.] "+format, a...)
}

func (l *Logger) write(fn func(io.Writer, string, ...interface{}), format string, a ...interface{}) {
	if l == nil {
		return
	}

	if len(format) == 0 || format[len(format)-1] != '\n' {
		format += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.out, format, a...)
}
