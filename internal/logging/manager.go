package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"resumetex/internal/config"
	"resumetex/internal/logging/adapters"
)

// Manager owns the process-wide MultiLogger.
type Manager struct {
	factory *AdapterFactory
	logger  *MultiLogger
}

func NewManager() *Manager {
	return &Manager{
		factory: NewAdapterFactory(),
		logger:  NewMultiLogger(),
	}
}

// Initialize builds adapters from cfg.Logging.Adapters, or a single stdout
// adapter in cfg.Logging.Format when none are configured.
func (m *Manager) Initialize(cfg *config.Config) error {
	m.logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	enabled := 0
	for _, ac := range cfg.Logging.Adapters {
		if !ac.Enabled {
			continue
		}
		adapter, err := m.factory.CreateAdapter(AdapterConfig{
			Name:    ac.Name,
			Type:    ac.Type,
			Enabled: ac.Enabled,
			Options: ac.Options,
		})
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", ac.Name, err)
		}
		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", ac.Name, err)
		}
		enabled++
	}
	if enabled > 0 {
		return nil
	}

	var w io.Writer
	if cfg.Logging.Output == "stderr" {
		w = os.Stderr
	}
	return m.logger.AddAdapter(adapters.NewStdoutAdapter("stdout", adapters.StdoutConfig{
		Format: cfg.Logging.Format,
		Writer: w,
	}))
}

func (m *Manager) GetLogger() Logger {
	return m.logger
}

func (m *Manager) Close() error {
	return m.logger.Close()
}

var (
	globalMu      sync.Mutex
	globalManager *Manager
)

// InitializeLogging replaces the global logger with one built from cfg.
func InitializeLogging(cfg *config.Config) error {
	m := NewManager()
	if err := m.Initialize(cfg); err != nil {
		return err
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
	return nil
}

// SetGlobalLogger installs an already-built logger, typically one backed by
// a MemoryAdapter in tests.
func SetGlobalLogger(l *MultiLogger) {
	globalMu.Lock()
	globalManager = &Manager{factory: NewAdapterFactory(), logger: l}
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger, falling back to JSON on stdout
// when InitializeLogging was never called.
func GetGlobalLogger() Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		m := NewManager()
		_ = m.logger.AddAdapter(adapters.NewStdoutAdapter("fallback_stdout", adapters.StdoutConfig{Format: "json"}))
		globalManager = m
	}
	return globalManager.logger
}

// AdapterHealth reports the health of every global adapter.
func AdapterHealth() map[string]error {
	if l, ok := GetGlobalLogger().(*MultiLogger); ok {
		return l.Health()
	}
	return nil
}

func CloseLogging() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}
