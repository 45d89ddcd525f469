package logging

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"resumetex/internal/logging/types"
)

// core is shared by a logger and every child derived from it, so adapters
// added to the root are seen by children.
type core struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    atomic.Int32
}

// MultiLogger fans each entry out to all registered adapters.
type MultiLogger struct {
	core    *core
	context context.Context
	fields  map[string]interface{}
}

// NewMultiLogger creates a logger at info level with no adapters.
func NewMultiLogger() *MultiLogger {
	c := &core{adapters: make(map[string]types.LogAdapter)}
	c.level.Store(int32(InfoLevel))
	return &MultiLogger{
		core:    c,
		context: context.Background(),
		fields:  map[string]interface{}{},
	}
}

func (l *MultiLogger) Debug(message string, fields ...map[string]interface{}) {
	l.Log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...map[string]interface{}) {
	l.Log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...map[string]interface{}) {
	l.Log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...map[string]interface{}) {
	l.Log(ErrorLevel, message, fields...)
}

// Fatal logs, flushes every adapter and exits the process.
func (l *MultiLogger) Fatal(message string, fields ...map[string]interface{}) {
	l.Log(FatalLevel, message, fields...)
	l.Close()
	os.Exit(1)
}

// Log writes the entry to every adapter. Adapter failures go to stderr so a
// broken sink never recurses into the logger.
func (l *MultiLogger) Log(level LogLevel, message string, fields ...map[string]interface{}) {
	if level < l.GetLevel() {
		return
	}

	entry := &types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.entryFields(fields...),
	}

	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	for name, adapter := range l.core.adapters {
		if err := adapter.Write(entry); err != nil {
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

// WithContext binds ctx; a request id stored with ContextWithRequestID is
// added to every entry.
func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return l.derive(ctx, nil)
}

func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	return l.derive(l.context, map[string]interface{}{key: value})
}

func (l *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(l.context, fields)
}

func (l *MultiLogger) derive(ctx context.Context, extra map[string]interface{}) *MultiLogger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &MultiLogger{core: l.core, context: ctx, fields: fields}
}

func (l *MultiLogger) SetLevel(level LogLevel) {
	l.core.level.Store(int32(level))
}

func (l *MultiLogger) GetLevel() LogLevel {
	return LogLevel(l.core.level.Load())
}

func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.core.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}
	l.core.adapters[name] = adapter
	return nil
}

func (l *MultiLogger) RemoveAdapter(adapterName string) error {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	adapter, exists := l.core.adapters[adapterName]
	if !exists {
		return fmt.Errorf("adapter %s not found", adapterName)
	}
	delete(l.core.adapters, adapterName)
	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter %s: %w", adapterName, err)
	}
	return nil
}

// Health reports each adapter's health check result, keyed by name.
func (l *MultiLogger) Health() map[string]error {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()

	out := make(map[string]error, len(l.core.adapters))
	for name, adapter := range l.core.adapters {
		out[name] = adapter.Health()
	}
	return out
}

func (l *MultiLogger) Close() error {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	var failed []string
	for name, adapter := range l.core.adapters {
		if err := adapter.Close(); err != nil {
			failed = append(failed, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("failed to close adapters: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (l *MultiLogger) entryFields(additional ...map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(l.fields)+1)
	if id := RequestIDFromContext(l.context); id != "" {
		fields["request_id"] = id
	}
	for k, v := range l.fields {
		fields[k] = v
	}
	for _, m := range additional {
		for k, v := range m {
			fields[k] = v
		}
	}
	return fields
}

// ParseLogLevel parses a level name; unknown names map to info.
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
