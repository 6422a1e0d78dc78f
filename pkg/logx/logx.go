// Package logx provides structured logging with session-aware prefixes and
// domain-filtered debug output for the tutoring core.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes timestamped, scope-prefixed log lines to stderr and mirrors
// them into an in-memory buffer for diagnostics.
type Logger struct {
	scope  string
	logger *log.Logger
}

// Level is a log severity label.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Debug domains used by the core pipeline. Enable selectively via
// DEBUG=1 DEBUG_DOMAINS=router,progression.
const (
	DomainClassifier  = "classifier"
	DomainRouter      = "router"
	DomainProgression = "progression"
	DomainSynth       = "synth"
	DomainCollab      = "collab"
	DomainStore       = "store"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // nil = all domains
}

// Entry is one captured log line, kept for the diagnostics buffer.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Scope     string `json:"scope"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
}

type entryBuffer struct {
	entries []Entry
	mu      sync.RWMutex
	maxSize int
}

var (
	debugConfig = &DebugConfig{}
	debugMu     sync.RWMutex

	buffer = &entryBuffer{maxSize: 1000}
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMu.Lock()
	defer debugMu.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger creates a logger scoped to a session or component identifier.
func NewLogger(scope string) *Logger {
	return &Logger{
		scope:  scope,
		logger: log.New(os.Stderr, "", 0), // stderr keeps stdout clean for the REPL
	}
}

// SetDebug configures global debug logging at runtime.
func SetDebug(enabled bool, domains []string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil
	} else {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range domains {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// DebugEnabledFor reports whether debug logging is on for the given domain.
func DebugEnabledFor(domain string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func (b *entryBuffer) add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// RecentEntries returns captured log entries, optionally filtered by domain
// and a lower timestamp bound.
func RecentEntries(domain string, since time.Time) []Entry {
	buffer.mu.RLock()
	defer buffer.mu.RUnlock()

	filtered := make([]Entry, 0, len(buffer.entries))
	for i := range buffer.entries {
		entry := &buffer.entries[i]
		if domain != "" && entry.Domain != "" && !strings.EqualFold(entry.Domain, domain) {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(timeLayout, entry.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

const timeLayout = "2006-01-02T15:04:05.000Z"

func (l *Logger) log(level Level, domain, format string, args ...any) {
	timestamp := time.Now().UTC().Format(timeLayout)
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s: %s", timestamp, l.scope, level, message))

	buffer.add(Entry{
		Timestamp: timestamp,
		Scope:     l.scope,
		Level:     string(level),
		Message:   message,
		Domain:    domain,
	})
}

// Debug logs a message when debug logging is globally enabled.
func (l *Logger) Debug(format string, args ...any) {
	debugMu.RLock()
	enabled := debugConfig.Enabled
	debugMu.RUnlock()

	if !enabled {
		return
	}
	l.log(LevelDebug, "", format, args...)
}

// DebugDomain logs a debug message subject to domain filtering.
//
//	logger.DebugDomain(logx.DomainRouter, "rule %s fired for %s", rule, route)
func (l *Logger) DebugDomain(domain, format string, args ...any) {
	if !DebugEnabledFor(domain) {
		return
	}
	l.log(LevelDebug, domain, "[%s] %s", domain, fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, "", format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, "", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, "", format, args...)
}

// Scope returns the logger's scope identifier.
func (l *Logger) Scope() string {
	return l.scope
}

// WithScope returns a logger sharing output but prefixed with a new scope.
func (l *Logger) WithScope(scope string) *Logger {
	return &Logger{scope: scope, logger: l.logger}
}

var defaultLogger = NewLogger("core")

// Infof logs to the default core-scoped logger.
func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

// Warnf logs a warning to the default core-scoped logger.
func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error. Use when an error should be
// both surfaced in diagnostics and returned to the caller:
//
//	return logx.Errorf("load continuity for %s: %w", sessionID, err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + err and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
