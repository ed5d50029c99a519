// Package config loads compiler settings from stackc.toml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"stackc/internal/passes"
	"stackc/internal/stackify"
)

const ConfigFileName = "stackc.toml"

// DefaultSpillBase is the first memory offset reserved for spilled values
const DefaultSpillBase = 0x8000

// Config drives one compilation. Unset inliner settings take the
// optimization level's defaults; an explicit 0 budget or depth turns the
// inliner off.
type Config struct {
	Optimize      string `toml:"optimize"`
	MaxIterations int    `toml:"max_iterations"`

	StackReach int    `toml:"stack_reach"`
	StackLimit int    `toml:"stack_limit"`
	SpillBase  uint64 `toml:"spill_base"`

	InlineBudget    *int `toml:"inline_budget"`
	InlineDepth     *int `toml:"inline_depth"`
	InlineMaxGrowth *int `toml:"inline_max_growth"`

	// Jobs is the number of functions compiled concurrently
	Jobs int `toml:"jobs"`

	Disable map[string]bool `toml:"disable"`
	Log     LogConfig       `toml:"log"`
}

type LogConfig struct {
	// Verbosity follows commonlog: 0 errors only, higher is louder
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

func Default() *Config {
	return &Config{
		Optimize:      string(passes.LevelO2),
		MaxIterations: passes.DefaultMaxIterations,
		StackReach:    stackify.DefaultReach,
		StackLimit:    stackify.DefaultLimit,
		SpillBase:     DefaultSpillBase,
		Jobs:          1,
		Disable:       map[string]bool{},
	}
}

// Load overlays the file at path onto the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays TOML data onto the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Disable == nil {
		cfg.Disable = map[string]bool{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := passes.ParseLevel(c.Optimize); err != nil {
		return err
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.StackReach < 1 || c.StackReach > stackify.DefaultReach {
		return fmt.Errorf("stack_reach must be between 1 and %d, got %d", stackify.DefaultReach, c.StackReach)
	}
	if c.StackLimit < c.StackReach {
		return fmt.Errorf("stack_limit %d is below stack_reach %d", c.StackLimit, c.StackReach)
	}
	if c.SpillBase%32 != 0 {
		return fmt.Errorf("spill_base %#x is not word aligned", c.SpillBase)
	}
	for name, v := range map[string]*int{
		"inline_budget":     c.InlineBudget,
		"inline_depth":      c.InlineDepth,
		"inline_max_growth": c.InlineMaxGrowth,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, *v)
		}
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	for flag := range c.Disable {
		if _, ok := passes.DisableFlags[flag]; !ok {
			return fmt.Errorf("unknown pass switch %q in [disable]", flag)
		}
	}
	return nil
}

// Level returns the parsed optimization level
func (c *Config) Level() passes.Level {
	level, err := passes.ParseLevel(c.Optimize)
	if err != nil {
		return passes.LevelO2
	}
	return level
}

// Tuning returns the inliner settings with level defaults filled in
func (c *Config) Tuning() passes.Tuning {
	t := c.Level().Tuning()
	if c.InlineBudget != nil {
		t.InlineBudget = *c.InlineBudget
	}
	if c.InlineDepth != nil {
		t.InlineDepth = *c.InlineDepth
	}
	if c.InlineMaxGrowth != nil {
		t.InlineMaxGrowth = *c.InlineMaxGrowth
	}
	return t
}

func (c *Config) StackOptions() stackify.Options {
	return stackify.Options{Reach: c.StackReach, Limit: c.StackLimit}
}

// SpillSlot returns the memory offset of the k-th spilled value
func (c *Config) SpillSlot(k int) uint64 {
	return c.SpillBase + 32*uint64(k)
}

// FindConfigFile looks for stackc.toml next to startPath and then in each
// parent directory. It returns "" when there is none.
func FindConfigFile(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}
	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
