package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitignore_ExclusionPatterns(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"target/", []string{"**/target/**"}},
		{"/dist/", []string{"dist/**"}},
		{"*.class", []string{"**/*.class", "**/*.class/**"}},
		{"/local.sbt", []string{"local.sbt", "local.sbt/**"}},
		{"project/metals.sbt", []string{"project/metals.sbt", "project/metals.sbt/**"}},
		{"**/out", []string{"**/out", "**/out/**"}},
		{"!keep.scala", nil},
		{"# comment", nil},
		{"   ", nil},
		{"/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			gp := NewGitignoreParser()
			gp.AddPattern(tt.line)
			assert.Equal(t, tt.want, gp.GetExclusionPatterns())
		})
	}
}

func TestGitignore_ModifiersRecorded(t *testing.T) {
	gp := NewGitignoreParser()
	gp.AddPattern("!/gen/")

	require.Len(t, gp.Patterns(), 1)
	p := gp.Patterns()[0]
	assert.Equal(t, "gen", p.Pattern)
	assert.True(t, p.Negate)
	assert.True(t, p.Directory)
	assert.True(t, p.Anchored)
}

func TestGitignore_InvalidGlobDropped(t *testing.T) {
	gp := NewGitignoreParser()
	gp.AddPattern("foo[")
	gp.AddPattern(".bsp/")
	assert.Equal(t, []string{"**/.bsp/**"}, gp.GetExclusionPatterns())
}

func TestGitignore_LoadFile(t *testing.T) {
	root := t.TempDir()
	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(root), "missing file is not an error")
	assert.Empty(t, gp.Patterns())

	writeFile(t, filepath.Join(root, ".gitignore"), "# build\ntarget/\n\n.metals/\n")
	require.NoError(t, gp.LoadGitignore(root))
	assert.Equal(t, []string{"**/target/**", "**/.metals/**"}, gp.GetExclusionPatterns())
}
