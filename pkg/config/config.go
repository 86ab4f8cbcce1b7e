// Package config loads varflow configuration from TOML, YAML, or JSON files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for varflow.
type Config struct {
	// Analysis settings for the usage engine.
	Analysis AnalysisConfig `koanf:"analysis"`

	// File exclusion patterns.
	Exclude ExcludeConfig `koanf:"exclude"`

	// Cache settings.
	Cache CacheConfig `koanf:"cache"`

	// Output settings.
	Output OutputConfig `koanf:"output"`
}

// AnalysisConfig controls the usage analysis engine.
type AnalysisConfig struct {
	// SafeTypes lists type names known to be free of construction and
	// destruction side effects even though no definition is visible.
	// Variables of types outside this list with no visible definition get
	// an information-severity configuration-gap notice instead of defect
	// findings.
	SafeTypes []string `koanf:"safe_types"`

	// CheckUnusedMembers enables the whole-unit struct member check.
	CheckUnusedMembers bool `koanf:"check_unused_members"`

	// Jobs bounds the per-function worker pool. Zero means 2x NumCPU.
	Jobs int `koanf:"jobs"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns"`
	Extensions []string `koanf:"extensions"`
	Dirs       []string `koanf:"dirs"`
	Gitignore  bool     `koanf:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			SafeTypes: []string{
				"std::string", "std::wstring",
				"std::vector", "std::map", "std::set",
				"std::pair", "std::list", "std::deque",
			},
			CheckUnusedMembers: true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_test.c",
				"*_test.cc",
				"*.min.*",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".varflow",
				"dist",
				"build",
				"third_party",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".varflow/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath points LoadConfig at an explicit config file.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// Result is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type Result struct {
	Config *Config
	Source string
}

// LoadConfig loads from an explicit path or searches standard locations,
// falling back to defaults when no file is found.
func LoadConfig(opts ...LoadOption) (*Result, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Source: o.path}, nil
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Source: path}, nil
	}

	return &Result{Config: DefaultConfig()}, nil
}

// LoadOrDefault tries standard locations and silently falls back to
// defaults on any error.
func LoadOrDefault() *Config {
	result, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return result.Config
}

func searchPaths() []string {
	names := []string{
		"varflow.toml",
		"varflow.yaml",
		"varflow.yml",
		"varflow.json",
		".varflow.toml",
		".varflow.yaml",
		".varflow.yml",
		".varflow.json",
	}
	dirs := []string{".", ".varflow"}

	var paths []string
	for _, dir := range dirs {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// IsSafeType reports whether a type name is whitelisted as side-effect free.
func (c *Config) IsSafeType(name string) bool {
	for _, t := range c.Analysis.SafeTypes {
		if t == name {
			return true
		}
	}
	return false
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
