package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by
// unknown keys so callers can distinguish them from I/O errors.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader resolves an AppConfig with precedence: environment overrides file,
// which overrides built-in defaults.
type Loader struct {
	configPath string
	lookupEnv  envLookupFunc
}

// NewLoader creates a loader that reads the OS environment.
func NewLoader(configPath string) *Loader {
	return NewLoaderWithEnv(configPath, os.LookupEnv)
}

// NewLoaderWithEnv creates a loader driven by an injected environment
// source, so tests never touch process-global environment variables.
func NewLoaderWithEnv(configPath string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{configPath: configPath, lookupEnv: lookup}
}

// Load resolves defaults, an optional config file, and environment
// overrides, then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if fileCfg != nil {
			mergeFileConfig(&cfg, fileCfg)
		}
	}

	mergeEnvConfig(&cfg, l.lookupEnv)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.RecordingsDir); err == nil {
		cfg.RecordingsDir = abs
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile strict-parses a YAML config file. Unknown fields are rejected
// (wrapped in ErrUnknownConfigField) so a typo in an operator's config
// fails at startup instead of silently falling back to defaults. A
// missing file is not an error: it means "use defaults and env only".
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- config path is operator-provided via CLI/env, not request input.
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
	}
	return &fc, nil
}
