package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/scalaidx/internal/types"
)

// Generation is one complete, immutable build of the symbol index.
//
// flat is the concatenation of the byKey buckets in key insertion order, so a
// declaration's position in flat is its tie-break rank for fuzzy search.
type Generation struct {
	seq        uint64
	byKey      map[string][]types.Declaration
	keys       []string
	flat       []types.Declaration
	lowerNames []string

	stats GenerationStats
}

// GenerationStats describes how a generation was built
type GenerationStats struct {
	Seq         uint64        `json:"seq"`
	Roots       []string      `json:"roots"`
	Strategies  []string      `json:"strategies"`
	Files       int           `json:"files"`
	ReadErrors  int           `json:"read_errors"`
	Symbols     int           `json:"symbols"`
	UniqueNames int           `json:"unique_names"`
	Fingerprint string        `json:"fingerprint"`
	BuiltAt     time.Time     `json:"built_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// BuildInfo carries the metadata a builder knows about a rebuild
type BuildInfo struct {
	Seq        uint64
	Roots      []string
	Strategies []string
	Files      int
	ReadErrors int
	Started    time.Time
}

// NewGeneration folds declarations, already in discovery order, into a generation
func NewGeneration(decls []types.Declaration, info BuildInfo) *Generation {
	g := &Generation{
		seq:   info.Seq,
		byKey: make(map[string][]types.Declaration),
	}

	for _, d := range decls {
		bucket, exists := g.byKey[d.Key]
		if !exists {
			g.keys = append(g.keys, d.Key)
		}
		g.byKey[d.Key] = append(bucket, d)
	}

	g.flat = make([]types.Declaration, 0, len(decls))
	for _, key := range g.keys {
		g.flat = append(g.flat, g.byKey[key]...)
	}

	g.lowerNames = make([]string, len(g.flat))
	for i, d := range g.flat {
		g.lowerNames[i] = strings.ToLower(d.DisplayName)
	}

	now := time.Now()
	elapsed := time.Duration(0)
	if !info.Started.IsZero() {
		elapsed = now.Sub(info.Started)
	}

	g.stats = GenerationStats{
		Seq:         info.Seq,
		Roots:       info.Roots,
		Strategies:  info.Strategies,
		Files:       info.Files,
		ReadErrors:  info.ReadErrors,
		Symbols:     len(g.flat),
		UniqueNames: len(g.keys),
		Fingerprint: fingerprint(g.keys, g.byKey),
		BuiltAt:     now,
		Elapsed:     elapsed,
	}
	return g
}

// fingerprint hashes keys and bucket contents in order, so two generations with
// identical byKey contents share a fingerprint
func fingerprint(keys []string, byKey map[string][]types.Declaration) string {
	h := xxhash.New()
	var buf []byte
	for _, key := range keys {
		_, _ = h.WriteString(key)
		for _, d := range byKey[key] {
			buf = buf[:0]
			buf = append(buf, 0)
			buf = append(buf, d.Kind.String()...)
			buf = append(buf, 0)
			if d.File != nil {
				buf = append(buf, d.File.AbsolutePath...)
			}
			buf = append(buf, 0)
			buf = strconv.AppendInt(buf, int64(d.Line), 10)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(d.Column), 10)
			_, _ = h.Write(buf)
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Lookup returns the declarations sharing a namespaced key, in discovery order.
// The returned slice must not be modified.
func (g *Generation) Lookup(key string) []types.Declaration {
	if g == nil {
		return nil
	}
	return g.byKey[key]
}

// Flat returns every declaration, grouped by key in insertion order
func (g *Generation) Flat() []types.Declaration {
	if g == nil {
		return nil
	}
	return g.flat
}

// LowerNames returns the lower-cased display names parallel to Flat
func (g *Generation) LowerNames() []string {
	if g == nil {
		return nil
	}
	return g.lowerNames
}

// Len returns the number of declarations
func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return len(g.flat)
}

// Seq returns the rebuild sequence number this generation was started with
func (g *Generation) Seq() uint64 {
	if g == nil {
		return 0
	}
	return g.seq
}

// Stats returns build metadata
func (g *Generation) Stats() GenerationStats {
	if g == nil {
		return GenerationStats{}
	}
	return g.stats
}
