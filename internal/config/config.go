package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/standardbeagle/scalaidx/internal/errors"
)

// Config file names looked up in the project root, in priority order
const (
	KDLFileName  = ".scalaidx.kdl"
	TOMLFileName = ".scalaidx.toml"
)

// DefaultSettingsSection is the client configuration section queried in pull mode
const DefaultSettingsSection = "scalaidx"

type Config struct {
	Version   int       `toml:"version"`
	Project   Project   `toml:"project"`
	Index     Index     `toml:"index"`
	Search    Search    `toml:"search"`
	LSP       LSP       `toml:"lsp"`
	Telemetry Telemetry `toml:"telemetry"`
	Exclude   []string  `toml:"exclude"`

	// Source is the file the config was loaded from, empty for defaults
	Source string `toml:"-"`
}

type Project struct {
	Root  string   `toml:"root"`
	Roots []string `toml:"roots"` // additional roots, relative to Root
}

type Index struct {
	Suffixes           []string `toml:"suffixes"` // the first suffix is the only one the walk strategy matches
	Strategy           string   `toml:"strategy"`
	Workers            int      `toml:"workers"`
	RebuildPolicy      string   `toml:"rebuild_policy"`
	OnReadError        string   `toml:"on_read_error"`
	Watch              bool     `toml:"watch"`
	WatchDebounceMs    int      `toml:"watch_debounce_ms"`
	RespectGitignore   bool     `toml:"respect_gitignore"`
	DetectBuildOutputs bool     `toml:"detect_build_outputs"`
}

type Search struct {
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
	MaxResults     int     `toml:"max_results"` // 0 = uncapped
}

type LSP struct {
	SettingsSection string `toml:"settings_section"`
	HoverEnabled    bool   `toml:"hover_enabled"`
}

type Telemetry struct {
	Enabled bool `toml:"enabled"`
	Buffer  int  `toml:"buffer"`
}

// Default returns the configuration used when no config file exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			Suffixes:        []string{".scala", ".sc"},
			Strategy:        "auto",
			Workers:         8,
			RebuildPolicy:   "last-finished",
			OnReadError:     "skip",
			Watch:           false,
			WatchDebounceMs: 300,
		},
		Search: Search{
			FuzzyThreshold: 0.5,
			MaxResults:     0,
		},
		LSP: LSP{
			SettingsSection: DefaultSettingsSection,
			HoverEnabled:    true,
		},
		Telemetry: Telemetry{
			Enabled: false,
			Buffer:  64,
		},
		Exclude: []string{},
	}
}

// Load reads the project config from root, see LoadWithRoot
func Load(root string) (*Config, error) {
	return LoadWithRoot("", root)
}

// LoadWithRoot loads configuration for a project rooted at rootDir.
//
// An explicit path wins. Otherwise a global ~/.scalaidx.kdl provides the base and
// the project's .scalaidx.kdl (or .scalaidx.toml) overrides it, keeping the union of
// both exclusion lists. The result is validated before it is returned.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	absDir, err := filepath.Abs(searchDir)
	if err != nil {
		absDir = searchDir
	}

	var cfg *Config
	if path != "" {
		cfg, err = LoadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		var baseConfig *Config
		if homeDir, err := os.UserHomeDir(); err == nil && homeDir != absDir {
			if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
				baseConfig = globalCfg
			}
		}

		projectConfig, err := loadProject(absDir)
		if err != nil {
			return nil, err
		}

		switch {
		case baseConfig != nil && projectConfig != nil:
			cfg = mergeConfigs(baseConfig, projectConfig)
		case projectConfig != nil:
			cfg = projectConfig
		case baseConfig != nil:
			baseConfig.Project.Root = absDir
			cfg = baseConfig
		default:
			cfg = Default(absDir)
		}
	}

	if cfg.Index.RespectGitignore {
		cfg.EnrichExclusionsWithGitignore()
	}
	if cfg.Index.DetectBuildOutputs {
		cfg.EnrichExclusionsWithBuildArtifacts()
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProject returns the project's KDL config, else its TOML config, else nil
func loadProject(dir string) (*Config, error) {
	cfg, err := LoadKDL(dir)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(dir)
}

// LoadFile loads an explicit config file, choosing the format by extension.
// A relative project root is resolved against the file's directory.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileError("read config", path, err)
	}

	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	cfg := Default("")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = parseTOML(content, cfg)
	case ".kdl":
		err = parseKDL(string(content), cfg)
	default:
		return nil, errors.NewConfigError("path", path, fmt.Errorf("unsupported config format %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}

	cfg.Source = path
	cfg.resolveRoot(dir)
	return cfg, nil
}

// resolveRoot makes Project.Root absolute relative to dir
func (c *Config) resolveRoot(dir string) {
	switch {
	case c.Project.Root == "":
		c.Project.Root = dir
	case !filepath.IsAbs(c.Project.Root):
		c.Project.Root = filepath.Join(dir, c.Project.Root)
	}
	c.Project.Root = filepath.Clean(c.Project.Root)
}

// Roots returns the absolute roots to index: the project root first, then any
// additional roots in declaration order, without duplicates
func (c *Config) Roots() []string {
	roots := []string{c.Project.Root}
	seen := map[string]bool{c.Project.Root: true}
	for _, r := range c.Project.Roots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(c.Project.Root, r)
		}
		r = filepath.Clean(r)
		if seen[r] {
			continue
		}
		seen[r] = true
		roots = append(roots, r)
	}
	return roots
}

// SmartWorkers is the worker count used when none is configured
func SmartWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// mergeConfigs merges a base config with a project config.
// The project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}
	return &merged
}

// EnrichExclusionsWithBuildArtifacts adds exclusions for build output directories
// detected in the project root
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}

// EnrichExclusionsWithGitignore adds the root .gitignore's patterns to the exclusions
func (c *Config) EnrichExclusionsWithGitignore() {
	if c.Project.Root == "" {
		return
	}

	gp := NewGitignoreParser()
	if err := gp.LoadGitignore(c.Project.Root); err != nil {
		return
	}
	if patterns := gp.GetExclusionPatterns(); len(patterns) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, patterns...))
	}
}
