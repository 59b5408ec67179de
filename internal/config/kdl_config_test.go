package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Empty(t *testing.T) {
	cfg := Default("/ws")
	require.NoError(t, parseKDL("", cfg))
	assert.Equal(t, Default("/ws"), cfg)
}

func TestParseKDL_BlockExclude(t *testing.T) {
	cfg := Default("/ws")
	cfg.Exclude = []string{"**/old/**"}
	err := parseKDL(`
exclude {
    "**/target/**"
    "**/.bloop/**"
}
`, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/target/**", "**/.bloop/**"}, cfg.Exclude)
}

func TestParseKDL_SemicolonSeparated(t *testing.T) {
	cfg := Default("/ws")
	err := parseKDL(`search { fuzzy_threshold 1; max_results 3 }`, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 3, cfg.Search.MaxResults)
}

func TestParseKDL_WrongTypesKeepDefaults(t *testing.T) {
	cfg := Default("/ws")
	err := parseKDL(`
index {
    workers "many"
    watch "yes"
    suffixes
}
search {
    fuzzy_threshold "high"
}
lsp {
    hover_enabled 1
}
`, cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Index.Workers)
	assert.False(t, cfg.Index.Watch)
	assert.Equal(t, []string{".scala", ".sc"}, cfg.Index.Suffixes)
	assert.Equal(t, 0.5, cfg.Search.FuzzyThreshold)
	assert.True(t, cfg.LSP.HoverEnabled)
}

func TestParseKDL_UnknownNodesIgnored(t *testing.T) {
	cfg := Default("/ws")
	err := parseKDL(`
performance {
    max_memory_mb 100
}
index {
    cache_dir "/tmp"
    workers 2
}
`, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Index.Workers)
}

func TestParseKDL_RootsAccumulate(t *testing.T) {
	cfg := Default("/ws")
	err := parseKDL(`
project {
    root "/repo"
    roots "a"
    roots "b" "c"
}
`, cfg)
	require.NoError(t, err)
	assert.Equal(t, "/repo", cfg.Project.Root)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Project.Roots)
}

func TestParseKDL_Invalid(t *testing.T) {
	err := parseKDL(`index { workers 2`, Default("/ws"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse KDL config")
}
