package internal_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zephyrtronium/jlrt"
)

// TestLoadConfig tests reading configurations in each supported format.
func TestLoadConfig(t *testing.T) {
	def := jlrt.DefaultConfig()
	cases := map[string]struct {
		file string
		text string
		want func(*jlrt.Config)
		err  string
	}{
		"YAML": {
			file: "jlrt.yaml",
			text: "max_heap: 1048576\ntask_stack_depth: 64\n",
			want: func(c *jlrt.Config) { c.MaxHeap = 1 << 20; c.TaskStackDepth = 64 },
		},
		"YML": {
			file: "jlrt.yml",
			text: "collect_interval: 0\n",
			want: func(c *jlrt.Config) { c.CollectInterval = 0 },
		},
		"TOML": {
			file: "jlrt.toml",
			text: "array_inline_bytes = 128\npool_page_cells = 16\nlog_verbosity = 2\n",
			want: func(c *jlrt.Config) { c.ArrayInlineBytes = 128; c.PoolPageCells = 16; c.LogVerbosity = 2 },
		},
		"Empty": {
			file: "empty.yaml",
			text: "",
			want: func(c *jlrt.Config) {},
		},
		"UnknownKey": {
			file: "unknown.yaml",
			text: "max_heep: 10\n",
			err:  "decoding",
		},
		"UnknownTOMLKey": {
			file: "unknown.toml",
			text: "max_heep = 10\n",
			err:  "unknown keys [max_heep]",
		},
		"BadTOML": {
			file: "bad.toml",
			text: "max_heap = \"lots\"\n",
			err:  "decoding",
		},
		"Negative": {
			file: "negative.yaml",
			text: "pool_page_cells: -1\n",
			err:  "pool_page_cells must not be negative",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), c.file)
			if err := os.WriteFile(path, []byte(c.text), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := jlrt.LoadConfig(path)
			if c.err != "" {
				if err == nil || !strings.Contains(err.Error(), c.err) {
					t.Errorf("want error containing %q, got %v", c.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			want := def
			c.want(&want)
			if cfg != want {
				t.Errorf("want %+v, got %+v", want, cfg)
			}
		})
	}
}

// TestLoadConfigMissing tests that a missing file is an error.
func TestLoadConfigMissing(t *testing.T) {
	_, err := jlrt.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want a not-exist error, got %v", err)
	}
}

// TestConfigValidate tests range checks and that invalid configurations are
// rejected by NewVMWithConfig.
func TestConfigValidate(t *testing.T) {
	if err := jlrt.DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	cases := map[string]func(*jlrt.Config){
		"CollectInterval":  func(c *jlrt.Config) { c.CollectInterval = -1 },
		"MaxHeap":          func(c *jlrt.Config) { c.MaxHeap = -1 },
		"ArrayInlineBytes": func(c *jlrt.Config) { c.ArrayInlineBytes = -1 },
		"PoolPageCells":    func(c *jlrt.Config) { c.PoolPageCells = -1 },
		"TaskStackDepth":   func(c *jlrt.Config) { c.TaskStackDepth = -1 },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := jlrt.DefaultConfig()
			f(&cfg)
			if cfg.Validate() == nil {
				t.Fatal("negative setting accepted")
			}
			defer func() {
				if recover() == nil {
					t.Error("NewVMWithConfig accepted an invalid config")
				}
			}()
			jlrt.NewVMWithConfig(cfg)
		})
	}
}
