package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scalaidx/internal/errors"
)

// isolateHome points the global config lookup at an empty directory
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Project.Root)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, []string{".scala", ".sc"}, cfg.Index.Suffixes)
	assert.Equal(t, "auto", cfg.Index.Strategy)
	assert.Equal(t, 8, cfg.Index.Workers)
	assert.Equal(t, "last-finished", cfg.Index.RebuildPolicy)
	assert.Equal(t, "skip", cfg.Index.OnReadError)
	assert.False(t, cfg.Index.Watch)
	assert.Equal(t, 300, cfg.Index.WatchDebounceMs)
	assert.Equal(t, 0.5, cfg.Search.FuzzyThreshold)
	assert.Zero(t, cfg.Search.MaxResults)
	assert.Equal(t, "scalaidx", cfg.LSP.SettingsSection)
	assert.True(t, cfg.LSP.HoverEnabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 64, cfg.Telemetry.Buffer)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, []string{root}, cfg.Roots())
}

func TestLoad_ProjectKDL(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, KDLFileName), `
project {
    roots "modules/core" "modules/api"
}
index {
    suffixes ".scala"
    strategy "walk"
    workers 3
    rebuild_policy "latest-started"
    on_read_error "abort"
    watch true
    watch_debounce_ms 50
}
search {
    fuzzy_threshold 0.75
    max_results 20
}
lsp {
    settings_section "scala"
    hover_enabled false
}
telemetry {
    enabled true
    buffer 16
}
exclude "**/generated/**"
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, KDLFileName), cfg.Source)
	assert.Equal(t, root, cfg.Project.Root)
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "modules", "core"),
		filepath.Join(root, "modules", "api"),
	}, cfg.Roots())
	assert.Equal(t, []string{".scala"}, cfg.Index.Suffixes)
	assert.Equal(t, "walk", cfg.Index.Strategy)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, "latest-started", cfg.Index.RebuildPolicy)
	assert.Equal(t, "abort", cfg.Index.OnReadError)
	assert.True(t, cfg.Index.Watch)
	assert.Equal(t, 50, cfg.Index.WatchDebounceMs)
	assert.Equal(t, 0.75, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, "scala", cfg.LSP.SettingsSection)
	assert.False(t, cfg.LSP.HoverEnabled)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 16, cfg.Telemetry.Buffer)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Exclude)
}

func TestLoad_TOMLFallback(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TOMLFileName), `
exclude = ["**/target/**"]

[index]
strategy = "find"
workers = 2

[search]
fuzzy_threshold = 0.25

[lsp]
hover_enabled = false
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, TOMLFileName), cfg.Source)
	assert.Equal(t, "find", cfg.Index.Strategy)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, 0.25, cfg.Search.FuzzyThreshold)
	assert.False(t, cfg.LSP.HoverEnabled)
	assert.Equal(t, []string{"**/target/**"}, cfg.Exclude)
	// Keys the file leaves out keep their defaults
	assert.Equal(t, []string{".scala", ".sc"}, cfg.Index.Suffixes)
	assert.Equal(t, "scalaidx", cfg.LSP.SettingsSection)
	assert.Equal(t, 300, cfg.Index.WatchDebounceMs)
}

func TestLoad_KDLPreferredOverTOML(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, KDLFileName), "index {\n    workers 5\n}\n")
	writeFile(t, filepath.Join(root, TOMLFileName), "[index]\nworkers = 7\n")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Index.Workers)
}

func TestLoad_MergesGlobalConfig(t *testing.T) {
	home := isolateHome(t)
	writeFile(t, filepath.Join(home, KDLFileName), "index {\n    workers 2\n}\nexclude \"**/.metals/**\"\n")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, KDLFileName), "index {\n    workers 6\n}\nexclude \"**/out/**\"\n")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Index.Workers, "project settings win")
	assert.Equal(t, []string{"**/.metals/**", "**/out/**"}, cfg.Exclude)
	assert.Equal(t, root, cfg.Project.Root)
}

func TestLoad_GlobalConfigOnly(t *testing.T) {
	home := isolateHome(t)
	writeFile(t, filepath.Join(home, KDLFileName), "search {\n    max_results 5\n}\n")

	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, root, cfg.Project.Root)
}

func TestLoadWithRoot_ExplicitPath(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.kdl")
	writeFile(t, path, "project {\n    root \"src\"\n}\n")

	cfg, err := LoadWithRoot(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.Project.Root)
	assert.Equal(t, path, cfg.Source)

	tomlPath := filepath.Join(dir, "custom.toml")
	writeFile(t, tomlPath, "[project]\nroot = \"/abs/root\"\n")
	cfg, err = LoadWithRoot(tomlPath, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/abs/root"), cfg.Project.Root)
}

func TestLoadWithRoot_ExplicitPathErrors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	_, err := LoadWithRoot(filepath.Join(dir, "missing.kdl"), "")
	var fileErr *errors.FileError
	assert.True(t, stderrors.As(err, &fileErr))

	yaml := filepath.Join(dir, "config.yaml")
	writeFile(t, yaml, "index: {}\n")
	_, err = LoadWithRoot(yaml, "")
	var cfgErr *errors.ConfigError
	require.True(t, stderrors.As(err, &cfgErr))
	assert.Equal(t, "path", cfgErr.Field)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, KDLFileName), "index {\n    strategy \"svn\"\n}\n")

	_, err := Load(root)
	var cfgErr *errors.ConfigError
	require.True(t, stderrors.As(err, &cfgErr))
	assert.Equal(t, "index", cfgErr.Field)
	assert.Contains(t, err.Error(), "svn")
}

func TestLoad_MalformedFiles(t *testing.T) {
	isolateHome(t)

	kdlRoot := t.TempDir()
	writeFile(t, filepath.Join(kdlRoot, KDLFileName), "index {\n")
	_, err := Load(kdlRoot)
	assert.Error(t, err)

	tomlRoot := t.TempDir()
	writeFile(t, filepath.Join(tomlRoot, TOMLFileName), "[index\nworkers = 1\n")
	_, err = Load(tomlRoot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOML")
}

func TestLoad_RespectGitignore(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "target/\n*.log\n")
	writeFile(t, filepath.Join(root, KDLFileName), "index {\n    respect_gitignore true\n}\n")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Contains(t, cfg.Exclude, "**/target/**")
	assert.Contains(t, cfg.Exclude, "**/*.log")
}

func TestLoad_DetectBuildOutputs(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build.sbt"), "scalaVersion := \"3.3.1\"\n")
	writeFile(t, filepath.Join(root, KDLFileName), "index {\n    detect_build_outputs true\n}\nexclude \"**/tmp/**\"\n")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/tmp/**", "**/target/**", "project/project/**"}, cfg.Exclude)
}

func TestRoots_Deduplicates(t *testing.T) {
	cfg := Default(filepath.FromSlash("/ws"))
	cfg.Project.Roots = []string{"a", filepath.FromSlash("/ws/a"), ".", filepath.FromSlash("/other")}

	assert.Equal(t, []string{
		filepath.FromSlash("/ws"),
		filepath.FromSlash("/ws/a"),
		filepath.FromSlash("/other"),
	}, cfg.Roots())
}

func TestMergeConfigs(t *testing.T) {
	base := Default("/base")
	base.Exclude = []string{"**/a/**", "**/b/**"}
	base.Index.Workers = 1

	project := Default("/project")
	project.Exclude = []string{"**/b/**", "**/c/**"}
	project.Index.Workers = 4

	merged := mergeConfigs(base, project)
	assert.Equal(t, []string{"**/a/**", "**/b/**", "**/c/**"}, merged.Exclude)
	assert.Equal(t, 4, merged.Index.Workers)
	assert.Equal(t, "/project", merged.Project.Root)
	assert.Equal(t, []string{"**/b/**", "**/c/**"}, project.Exclude, "inputs untouched")
}
