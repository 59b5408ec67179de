package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/errors"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

// DefaultSuffixes are the source file suffixes recognized out of the box
var DefaultSuffixes = []string{".scala", ".sc"}

// Options configures a Discoverer
type Options struct {
	// Suffixes accepted by the git, find and dir strategies; walk uses only the first
	Suffixes []string
	// Exclude holds doublestar globs matched against root-relative slash paths
	Exclude []string
	// Strategy forces one strategy by name; "" or "auto" selects by availability
	Strategy string
}

// Result is the outcome of discovering one root
type Result struct {
	Root     string
	Strategy string
	Paths    []string
	Excluded int
}

// Discoverer runs strategy selection and exclusion filtering for workspace roots.
// Selection is evaluated on every call and never cached.
type Discoverer struct {
	env        Env
	strategies []Strategy
	opts       Options

	// Logf receives the operational log lines; defaults to log.Printf
	Logf func(format string, args ...interface{})
}

// New creates a Discoverer over the real environment
func New(opts Options) *Discoverer {
	return NewWithEnv(OSEnv{}, DefaultStrategies(), opts)
}

// NewWithEnv creates a Discoverer with an explicit environment and strategy list
func NewWithEnv(env Env, strategies []Strategy, opts Options) *Discoverer {
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = DefaultSuffixes
	}
	return &Discoverer{
		env:        env,
		strategies: strategies,
		opts:       opts,
		Logf:       log.Printf,
	}
}

// Discover enumerates candidate files under root. A strategy that fails is
// skipped in favor of the next one; only a failing walk is returned as an error.
func (d *Discoverer) Discover(ctx context.Context, root string) (*Result, error) {
	candidates, err := d.candidates()
	if err != nil {
		return nil, err
	}

	for {
		s := Select(d.env, root, candidates)
		d.logf("Getting scala files with %s", s.Name())

		paths, err := s.Discover(ctx, root, d.opts.Suffixes)
		var partial *PartialError
		if stderrors.As(err, &partial) {
			d.logf("Warning: %s on %s: %v", s.Name(), root, partial)
			err = nil
		}
		if err != nil {
			derr := errors.NewDiscoveryError(s.Name(), root, err)
			if s.Name() == StrategyWalk || ctx.Err() != nil {
				derr.Recoverable = false
				return nil, derr
			}
			d.logf("Warning: %v", derr)
			candidates = remaining(candidates, s)
			continue
		}

		kept := d.filter(root, paths)
		d.logf("Found %d scala files to index", len(kept))
		debug.LogDiscovery("%s: %d candidates, %d excluded\n", root, len(paths), len(paths)-len(kept))

		return &Result{
			Root:     root,
			Strategy: s.Name(),
			Paths:    kept,
			Excluded: len(paths) - len(kept),
		}, nil
	}
}

func (d *Discoverer) candidates() ([]Strategy, error) {
	if d.opts.Strategy == "" || d.opts.Strategy == StrategyAuto {
		return d.strategies, nil
	}
	s := ByName(d.opts.Strategy)
	if s == nil {
		return nil, errors.NewConfigError("index.strategy", d.opts.Strategy, fmt.Errorf("unknown discovery strategy"))
	}
	if s.Name() == StrategyWalk {
		return []Strategy{s}, nil
	}
	return []Strategy{s, walkStrategy{}}, nil
}

// filter drops paths matching any exclusion glob
func (d *Discoverer) filter(root string, paths []string) []string {
	if len(d.opts.Exclude) == 0 {
		return paths
	}
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !d.IsExcluded(root, p) {
			kept = append(kept, p)
		}
	}
	return kept
}

// IsExcluded reports whether path, under root, matches an exclusion glob
func (d *Discoverer) IsExcluded(root, path string) bool {
	rel := filepath.ToSlash(pathutil.StripRoot(path, root))
	for _, pattern := range d.opts.Exclude {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			// Bad pattern shouldn't break discovery
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func (d *Discoverer) logf(format string, args ...interface{}) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}
