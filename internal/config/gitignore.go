package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser turns the root .gitignore into exclusion globs. Only the root file
// is read; nested .gitignore files and negations are not supported.
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Anchored  bool
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gp.parse(file)
}

func (gp *GitignoreParser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		gp.AddPattern(scanner.Text())
	}
	return scanner.Err()
}

// AddPattern parses one .gitignore line; blanks and comments are skipped
func (gp *GitignoreParser) AddPattern(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	p := GitignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	// A slash at the start or in the middle anchors the pattern to the root
	if strings.HasPrefix(line, "/") {
		p.Anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		p.Anchored = true
	}
	if line == "" {
		return
	}
	p.Pattern = line
	gp.patterns = append(gp.patterns, p)
}

// Patterns returns the parsed patterns in file order
func (gp *GitignoreParser) Patterns() []GitignorePattern {
	return gp.patterns
}

// GetExclusionPatterns converts the parsed patterns to doublestar globs matched
// against root-relative slash paths. Negations and patterns doublestar rejects
// are dropped.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, p := range gp.patterns {
		if p.Negate {
			continue
		}
		for _, glob := range toGlobs(p) {
			if doublestar.ValidatePattern(glob) {
				exclusions = append(exclusions, glob)
			}
		}
	}
	return DeduplicatePatterns(exclusions)
}

func toGlobs(p GitignorePattern) []string {
	base := p.Pattern
	if !p.Anchored && !strings.HasPrefix(base, "**/") {
		base = "**/" + base
	}
	if p.Directory {
		return []string{base + "/**"}
	}
	// Without a trailing slash the name may be a file or a directory
	return []string{base, base + "/**"}
}
