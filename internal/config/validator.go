package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/discovery"
	idxerrors "github.com/standardbeagle/scalaidx/internal/errors"
	"github.com/standardbeagle/scalaidx/internal/indexing"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and fills zero values.
// Returns a ConfigError naming the offending section.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return idxerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return idxerrors.NewConfigError("index", "", err)
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return idxerrors.NewConfigError("search", "", err)
	}

	if cfg.Telemetry.Buffer < 0 {
		return idxerrors.NewConfigError("telemetry", "", fmt.Errorf("buffer cannot be negative, got %d", cfg.Telemetry.Buffer))
	}

	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return idxerrors.NewConfigError("exclude", pattern, errors.New("invalid glob pattern"))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	for _, r := range project.Roots {
		if strings.TrimSpace(r) == "" {
			return errors.New("additional roots cannot be empty")
		}
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	for _, s := range index.Suffixes {
		if s == "" {
			return errors.New("suffixes cannot contain an empty string")
		}
	}

	if index.Strategy != "" && index.Strategy != discovery.StrategyAuto && discovery.ByName(index.Strategy) == nil {
		return fmt.Errorf("unknown discovery strategy %q", index.Strategy)
	}

	if index.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", index.Workers)
	}

	if _, err := core.ParseRebuildPolicy(index.RebuildPolicy); err != nil {
		return err
	}

	switch index.OnReadError {
	case "", indexing.OnReadErrorSkip, indexing.OnReadErrorAbort:
	default:
		return fmt.Errorf("unknown on_read_error %q, expected %q or %q", index.OnReadError, indexing.OnReadErrorSkip, indexing.OnReadErrorAbort)
	}

	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("watch_debounce_ms cannot be negative, got %d", index.WatchDebounceMs)
	}

	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.FuzzyThreshold < 0 || search.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be within [0,1], got %g", search.FuzzyThreshold)
	}

	if search.MaxResults < 0 {
		return fmt.Errorf("max_results cannot be negative, got %d", search.MaxResults)
	}

	return nil
}

// setSmartDefaults replaces zero values left by a partial config file
func (v *Validator) setSmartDefaults(cfg *Config) {
	defaults := Default(cfg.Project.Root)

	if len(cfg.Index.Suffixes) == 0 {
		cfg.Index.Suffixes = defaults.Index.Suffixes
	}
	if cfg.Index.Strategy == "" {
		cfg.Index.Strategy = discovery.StrategyAuto
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = SmartWorkers()
	}
	if cfg.Index.RebuildPolicy == "" {
		cfg.Index.RebuildPolicy = string(core.PolicyLastFinished)
	}
	if cfg.Index.OnReadError == "" {
		cfg.Index.OnReadError = indexing.OnReadErrorSkip
	}
	if cfg.Index.WatchDebounceMs == 0 {
		cfg.Index.WatchDebounceMs = defaults.Index.WatchDebounceMs
	}
	if cfg.LSP.SettingsSection == "" {
		cfg.LSP.SettingsSection = DefaultSettingsSection
	}
	if cfg.Telemetry.Buffer == 0 {
		cfg.Telemetry.Buffer = defaults.Telemetry.Buffer
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
