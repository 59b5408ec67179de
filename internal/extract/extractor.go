// Package extract finds declarations in source text by scanning each line with a
// fixed table of keyword patterns. It never parses: matches inside comments or
// string literals are reported like any other declaration.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/standardbeagle/scalaidx/internal/types"
)

// LinePattern maps one declaration keyword to the kind it produces
type LinePattern struct {
	Keyword string
	Kind    types.DeclKind
}

// DefaultPatterns is the recognized declaration table. trait and object reuse the
// existing structural kinds rather than introducing new ones.
var DefaultPatterns = []LinePattern{
	{Keyword: "class", Kind: types.DeclKindClass},
	{Keyword: "trait", Kind: types.DeclKindInterface},
	{Keyword: "object", Kind: types.DeclKindClass},
	{Keyword: "val", Kind: types.DeclKindVariable},
	{Keyword: "def", Kind: types.DeclKindFunction},
	{Keyword: "type", Kind: types.DeclKindTypeParameter},
}

// identifierPattern is a letter followed by one or more letters, digits or underscores
const identifierPattern = `[a-zA-Z][a-zA-Z0-9_]+`

type compiledPattern struct {
	LinePattern
	rx *regexp.Regexp
}

// Extractor applies a pattern table to file text
type Extractor struct {
	patterns []compiledPattern
}

// New compiles an extractor for the given table.
// A nil or empty table uses DefaultPatterns.
func New(patterns []LinePattern) *Extractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	e := &Extractor{patterns: make([]compiledPattern, 0, len(patterns))}
	for _, p := range patterns {
		e.patterns = append(e.patterns, compiledPattern{
			LinePattern: p,
			rx:          regexp.MustCompile(regexp.QuoteMeta(p.Keyword) + ` (` + identifierPattern + `)`),
		})
	}
	return e
}

// Patterns returns the table this extractor was built from
func (e *Extractor) Patterns() []LinePattern {
	out := make([]LinePattern, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = p.LinePattern
	}
	return out
}

type lineMatch struct {
	start  int // byte offset of the keyword
	column int
	name   string
	kind   types.DeclKind
	order  int // pattern table position, for stable ordering
}

// Extract scans text line by line and returns declarations ordered by line, then
// by position within the line. Lines are split on '\n' only.
func (e *Extractor) Extract(file *types.SourceFile, text string) []types.Declaration {
	var decls []types.Declaration
	var matches []lineMatch

	for lineNum, line := range strings.Split(text, "\n") {
		matches = e.scanLine(line, matches[:0])
		for _, m := range matches {
			decls = append(decls, types.NewDeclaration(m.name, m.kind, file, lineNum, m.column))
		}
	}

	return decls
}

func (e *Extractor) scanLine(line string, out []lineMatch) []lineMatch {
	for order, p := range e.patterns {
		// Cheap rejection before running the regexp
		if !strings.Contains(line, p.Keyword) {
			continue
		}
		for _, loc := range p.rx.FindAllStringSubmatchIndex(line, -1) {
			out = append(out, lineMatch{
				start:  loc[0],
				column: utf16Len(line[:loc[0]]) + len(p.Keyword) + 1,
				name:   line[loc[2]:loc[3]],
				kind:   p.Kind,
				order:  order,
			})
		}
	}
	if len(out) > 1 {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].start != out[j].start {
				return out[i].start < out[j].start
			}
			return out[i].order < out[j].order
		})
	}
	return out
}

// utf16Len counts the UTF-16 code units needed to encode s
func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if utf16.RuneLen(r) == 2 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
