package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Config holds the tunable parameters of a VM.
type Config struct {
	// CollectInterval is the number of bytes allocated between automatic
	// collections. Zero disables automatic collection.
	CollectInterval int `yaml:"collect_interval" toml:"collect_interval"`
	// MaxHeap is the ceiling on live bytes. Zero means no limit.
	MaxHeap int `yaml:"max_heap" toml:"max_heap"`
	// ArrayInlineBytes is the largest buffer an array keeps inline before
	// moving its elements to external storage.
	ArrayInlineBytes int `yaml:"array_inline_bytes" toml:"array_inline_bytes"`
	// PoolPageCells is the number of cells in each new small-object page.
	PoolPageCells int `yaml:"pool_page_cells" toml:"pool_page_cells"`
	// TaskStackDepth limits nested calls in each task. Zero means no limit.
	TaskStackDepth int `yaml:"task_stack_depth" toml:"task_stack_depth"`
	// LogVerbosity is passed to commonlog.Configure by programs embedding
	// the VM.
	LogVerbosity int `yaml:"log_verbosity" toml:"log_verbosity"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CollectInterval:  16 << 20,
		MaxHeap:          0,
		ArrayInlineBytes: 2048 * wordSize,
		PoolPageCells:    1024,
		TaskStackDepth:   10000,
		LogVerbosity:     0,
	}
}

// LoadConfig reads a configuration file. Files named *.toml are decoded as
// TOML; anything else as YAML. Settings absent from the file keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("jlrt: reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("jlrt: decoding %s: %w", path, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return cfg, fmt.Errorf("jlrt: decoding %s: unknown keys %v", path, keys)
		}
	default:
		if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
			return cfg, fmt.Errorf("jlrt: decoding %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports an error if any setting is out of range.
func (c Config) Validate() error {
	switch {
	case c.CollectInterval < 0:
		return fmt.Errorf("jlrt: collect_interval must not be negative")
	case c.MaxHeap < 0:
		return fmt.Errorf("jlrt: max_heap must not be negative")
	case c.ArrayInlineBytes < 0:
		return fmt.Errorf("jlrt: array_inline_bytes must not be negative")
	case c.PoolPageCells < 0:
		return fmt.Errorf("jlrt: pool_page_cells must not be negative")
	case c.TaskStackDepth < 0:
		return fmt.Errorf("jlrt: task_stack_depth must not be negative")
	}
	return nil
}
