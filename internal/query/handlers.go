package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/errors"
	"github.com/standardbeagle/scalaidx/internal/search"
	"github.com/standardbeagle/scalaidx/internal/types"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

// Position is a document reference plus a 0-based line and UTF-16 column
type Position struct {
	URI    string `json:"uri"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// HoverResult is rendered hover content
type HoverResult struct {
	Markdown string           `json:"markdown"`
	Matches  []types.Location `json:"matches"`
}

// ResolveTerm turns a position into a namespaced lookup key. ok is false when the
// URI is not a usable file reference or the line does not exist.
func ResolveTerm(pos Position, read LineReader) (key string, ok bool, err error) {
	path, err := pathutil.FileURIToPath(pos.URI)
	if err != nil {
		debug.LogSearch("%v\n", errors.NewLookupError(pos.URI, err))
		return "", false, nil
	}

	line, found, err := read(path, pos.Line)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	key = LocateTerm(line, pos.Column)
	return key, key != "", nil
}

// Definition returns the location of every declaration sharing the term under
// the cursor. Misses yield an empty list.
func Definition(g *core.Generation, pos Position, read LineReader) ([]types.Location, error) {
	key, ok, err := ResolveTerm(pos, read)
	if err != nil || !ok {
		return []types.Location{}, err
	}

	decls := g.Lookup(key)
	locs := make([]types.Location, 0, len(decls))
	for _, d := range decls {
		locs = append(locs, LocationOf(d))
	}
	return locs, nil
}

// Hover renders one markdown line per declaration sharing the term, sorted by
// absolute path. It returns nil when hover is disabled or nothing matches.
func Hover(g *core.Generation, settings types.Settings, pos Position, read LineReader) (*HoverResult, error) {
	if !settings.HoverEnabled {
		return nil, nil
	}

	key, ok, err := ResolveTerm(pos, read)
	if err != nil || !ok {
		return nil, err
	}

	decls := g.Lookup(key)
	if len(decls) == 0 {
		return nil, nil
	}

	sorted := make([]types.Declaration, len(decls))
	copy(sorted, decls)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].File.AbsolutePath < sorted[j].File.AbsolutePath
	})

	lines := make([]string, 0, len(sorted))
	locs := make([]types.Location, 0, len(sorted))
	for _, d := range sorted {
		loc := LocationOf(d)
		lines = append(lines, HoverLine(d, loc.URI))
		locs = append(locs, loc)
	}

	return &HoverResult{
		Markdown: strings.Join(lines, "\n"),
		Matches:  locs,
	}, nil
}

// HoverLine formats one hover entry: a markdown link labelled with the relative
// path and 1-based line, targeting the file URI with a line fragment.
func HoverLine(d types.Declaration, uri string) string {
	pos := fmt.Sprintf("%d,%d", d.Line+1, d.Column)
	return fmt.Sprintf("- [%s:%s](%s#L%s)", d.File.RelativePath, pos, uri, pos)
}

// WorkspaceSymbol ranks every declaration against query. A nil generation
// yields an empty result.
func WorkspaceSymbol(g *core.Generation, matcher *search.FuzzyMatcher, query string) []types.SymbolResult {
	if g == nil {
		return []types.SymbolResult{}
	}

	flat := g.Flat()
	matches := matcher.Rank(strings.ToLower(query), g.LowerNames())

	results := make([]types.SymbolResult, 0, len(matches))
	for _, m := range matches {
		d := flat[m.Index]
		results = append(results, types.SymbolResult{
			Name:     types.StripKey(d.Key),
			Kind:     d.Kind,
			Location: LocationOf(d),
		})
	}
	return results
}

// LocationOf converts a declaration to a plain location value
func LocationOf(d types.Declaration) types.Location {
	loc := types.Location{Line: d.Line, Column: d.Column}
	if d.File != nil {
		loc.Path = d.File.AbsolutePath
		loc.URI = pathutil.PathToFileURI(d.File.AbsolutePath)
	}
	return loc
}
