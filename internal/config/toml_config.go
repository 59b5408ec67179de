package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LoadTOML loads .scalaidx.toml from projectRoot. It returns nil, nil when the file
// does not exist.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, TOMLFileName)

	content, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}

	cfg := Default("")
	if err := parseTOML(content, cfg); err != nil {
		return nil, err
	}

	root := projectRoot
	if abs, err := filepath.Abs(projectRoot); err == nil {
		root = abs
	}
	cfg.Source = tomlPath
	cfg.resolveRoot(root)
	return cfg, nil
}

// parseTOML decodes onto cfg so keys absent from the document keep their defaults
func parseTOML(content []byte, cfg *Config) error {
	if err := toml.Unmarshal(content, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("failed to parse TOML config at %d:%d: %w", row, col, err)
		}
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return nil
}
