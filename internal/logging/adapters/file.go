package adapters

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"resumetex/internal/logging/types"
)

// FileAdapter appends entries to a file and rotates it by size. Rotated
// files are named <path>.<timestamp>, optionally gzipped, and pruned to
// MaxBackups.
type FileAdapter struct {
	name   string
	config FileConfig
	file   *os.File
	size   int64
	mu     sync.Mutex
}

// FileConfig represents configuration for the file adapter
type FileConfig struct {
	FilePath    string      `yaml:"file_path"`
	Format      string      `yaml:"format"`   // json or text
	MaxSize     int64       `yaml:"max_size"` // bytes, 0 disables rotation
	MaxBackups  int         `yaml:"max_backups"`
	Compress    bool        `yaml:"compress"`
	CreateDirs  bool        `yaml:"create_dirs"`
	FileMode    os.FileMode `yaml:"file_mode"`
	SyncOnWrite bool        `yaml:"sync_on_write"`
}

// NewFileAdapter opens (or creates) the log file.
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file adapter")
	}
	if config.FileMode == 0 {
		config.FileMode = 0o644
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 10
	}

	if config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	a := &FileAdapter{name: name, config: config}
	if err := a.open(); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return a, nil
}

func (a *FileAdapter) Write(entry *types.LogEntry) error {
	line, err := render(a.config.Format, entry, false)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("log file %s is closed", a.config.FilePath)
	}
	if a.config.MaxSize > 0 && a.size >= a.config.MaxSize {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := a.file.WriteString(line + "\n")
	a.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if a.config.SyncOnWrite {
		return a.file.Sync()
	}
	return nil
}

func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *FileAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("log file is not open")
	}
	if _, err := a.file.Stat(); err != nil {
		return fmt.Errorf("log file is not accessible: %w", err)
	}
	return nil
}

func (a *FileAdapter) Name() string { return a.name }

func (a *FileAdapter) open() error {
	f, err := os.OpenFile(a.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, a.config.FileMode)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	a.file = f
	a.size = info.Size()
	return nil
}

// rotate must be called with a.mu held.
func (a *FileAdapter) rotate() error {
	if err := a.file.Close(); err != nil {
		return err
	}
	a.file = nil

	backup := a.config.FilePath + "." + time.Now().Format("20060102-150405.000")
	if err := os.Rename(a.config.FilePath, backup); err != nil {
		return err
	}
	if a.config.Compress {
		if err := gzipFile(backup); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: compress %s: %v\n", backup, err)
		}
	}
	a.pruneBackups()

	return a.open()
}

func (a *FileAdapter) pruneBackups() {
	dir := filepath.Dir(a.config.FilePath)
	prefix := filepath.Base(a.config.FilePath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= a.config.MaxBackups {
		return
	}
	// timestamps sort lexically, oldest first
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-a.config.MaxBackups] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: remove %s: %v\n", name, err)
		}
	}
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
