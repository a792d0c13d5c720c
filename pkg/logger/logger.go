package logger

import (
	"fmt"
	"hash/fnv"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a textual level into a Level
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %s", level)
}

// relayColors is the palette used to tell relays apart in the console
var relayColors = []color.Attribute{
	color.FgHiGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgHiBlue,
	color.FgRed,
	color.FgBlue,
	color.FgGreen,
	color.FgCyan,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithRelay(relayURL string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithRelay(relayURL string, format string, args ...interface{})

	// Warn logs a condition that does not stop relaying but deserves attention.
	Warn(format string, args ...interface{})
	WarnWithRelay(relayURL string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithRelay(relayURL string, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithRelay(relayURL string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) InfoWithRelay(_ string, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) ErrorWithRelay(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Warn(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) WarnWithRelay(_ string, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) DebugWithRelay(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) NoticeWithRelay(_ string, _ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// relayPrefix returns the bracketed host of the relay, colored by a stable hash of the host
func (l *StdLogger) relayPrefix(relayURL string) string {
	if relayURL == "" {
		return ""
	}

	host := relayURL
	if parsed, err := url.Parse(relayURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	prefix := "[" + host + "] "

	if l.enableColoring {
		h := fnv.New32a()
		_, _ = h.Write([]byte(host))
		prefix = color.New(relayColors[h.Sum32()%uint32(len(relayColors))]).Sprint(prefix)
	}
	return prefix
}

// formatMessage formats the log message with the appropriate log level, relay prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, relayURL string, format string) string {
	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case WarnLevel:
		levelStr = "[WARN]   "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	if l.enableColoring && level == WarnLevel {
		levelStr = color.New(color.FgHiYellow).Sprint(levelStr)
	}
	if l.enableColoring && level == ErrorLevel {
		levelStr = color.New(color.FgHiRed).Sprint(levelStr)
	}

	return levelStr + l.relayPrefix(relayURL) + format
}

func (l *StdLogger) logf(level Level, relayURL string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		log.Printf(l.formatMessage(level, relayURL, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, "", format, args...)
}

func (l *StdLogger) InfoWithRelay(relayURL string, format string, args ...interface{}) {
	l.logf(InfoLevel, relayURL, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, "", format, args...)
}

func (l *StdLogger) ErrorWithRelay(relayURL string, format string, args ...interface{}) {
	l.logf(ErrorLevel, relayURL, format, args...)
}

func (l *StdLogger) Warn(format string, args ...interface{}) {
	l.logf(WarnLevel, "", format, args...)
}

func (l *StdLogger) WarnWithRelay(relayURL string, format string, args ...interface{}) {
	l.logf(WarnLevel, relayURL, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, "", format, args...)
}

func (l *StdLogger) DebugWithRelay(relayURL string, format string, args ...interface{}) {
	l.logf(DebugLevel, relayURL, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, "", format, args...)
}

func (l *StdLogger) NoticeWithRelay(relayURL string, format string, args ...interface{}) {
	l.logf(NoticeLevel, relayURL, format, args...)
}
