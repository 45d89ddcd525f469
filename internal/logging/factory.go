package logging

import (
	"fmt"

	"resumetex/internal/logging/adapters"
	"resumetex/internal/logging/types"
)

// AdapterFactory builds adapters from the logging.adapters config entries.
type AdapterFactory struct{}

func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{}
}

// CreateAdapter supports the stdout, file and memory adapter types.
func (f *AdapterFactory) CreateAdapter(adapterConfig types.AdapterConfig) (types.LogAdapter, error) {
	opts := adapterConfig.Options
	switch adapterConfig.Type {
	case "stdout":
		return adapters.NewStdoutAdapter(adapterConfig.Name, adapters.StdoutConfig{
			Format:    stringOption(opts, "format", "json"),
			Colorized: boolOption(opts, "colorized", false),
		}), nil
	case "file":
		return adapters.NewFileAdapter(adapterConfig.Name, adapters.FileConfig{
			FilePath:    stringOption(opts, "file_path", ""),
			Format:      stringOption(opts, "format", "json"),
			MaxSize:     int64(intOption(opts, "max_size", 0)),
			MaxBackups:  intOption(opts, "max_backups", 10),
			Compress:    boolOption(opts, "compress", false),
			CreateDirs:  boolOption(opts, "create_dirs", true),
			SyncOnWrite: boolOption(opts, "sync_on_write", false),
		})
	case "memory":
		return adapters.NewMemoryAdapter(adapterConfig.Name, intOption(opts, "limit", 0)), nil
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", adapterConfig.Type)
	}
}

func stringOption(options map[string]interface{}, key, def string) string {
	if s, ok := options[key].(string); ok {
		return s
	}
	return def
}

// intOption accepts the numeric types yaml.v3 and JSON decoding produce.
func intOption(options map[string]interface{}, key string, def int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func boolOption(options map[string]interface{}, key string, def bool) bool {
	if b, ok := options[key].(bool); ok {
		return b
	}
	return def
}
