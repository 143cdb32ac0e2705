package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents logging verbosity
type Level int

const (
	ErrorLevel Level = iota
	InfoLevel
	DebugLevel
	TraceLevel
)

var levelNames = map[Level]string{
	ErrorLevel: "ERROR",
	InfoLevel:  "INFO",
	DebugLevel: "DEBUG",
	TraceLevel: "TRACE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return strings.ToLower(name)
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Logger writes leveled console output and, when a log directory is
// configured, a timestamped copy of every message to a run log file.
type Logger struct {
	level   Level
	mu      sync.Mutex
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
	fileLog *log.Logger
}

// New creates a logger. An empty logDir disables the run log file.
func New(level Level, logDir string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	if logDir == "" {
		return l, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("coverage-report-%s.log", time.Now().Format("20060102-150405")))
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	l.file = f
	l.fileLog = log.New(f, "", log.LstdFlags)

	return l, nil
}

// SetOutput redirects console output.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = stdout
	l.stderr = stderr
}

// Level returns the configured verbosity.
func (l *Logger) Level() Level {
	return l.level
}

// Path returns the run log file path, or "" when file logging is off.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close closes the run log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLog = nil
	return err
}

func (l *Logger) leveled(level Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if level == ErrorLevel {
		l.write(l.stderr, levelNames[level], "❌ ", msg)
		return
	}
	l.write(l.stdout, levelNames[level], "", msg)
}

func (l *Logger) write(w io.Writer, tag, prefix, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Printf("[%s] %s", tag, msg)
	}
	fmt.Fprintf(w, "%s%s\n", prefix, msg)
}

// Error logs an error message to stderr
func (l *Logger) Error(format string, args ...interface{}) {
	l.leveled(ErrorLevel, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.leveled(InfoLevel, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.leveled(DebugLevel, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.leveled(TraceLevel, format, args...)
}

// Progress reports a step that is starting (always shown)
func (l *Logger) Progress(format string, args ...interface{}) {
	l.write(l.stdout, "PROGRESS", "⏳ ", fmt.Sprintf(format, args...))
}

// Success reports a completed step (always shown)
func (l *Logger) Success(format string, args ...interface{}) {
	l.write(l.stdout, "SUCCESS", "✅ ", fmt.Sprintf(format, args...))
}

// Warning reports a recoverable problem (always shown)
func (l *Logger) Warning(format string, args ...interface{}) {
	l.write(l.stdout, "WARNING", "⚠️  ", fmt.Sprintf(format, args...))
}

// ParseLevel parses a verbosity name, ignoring case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ErrorLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s (valid: error, info, debug, trace)", s)
	}
}
