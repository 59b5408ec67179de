package indexing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/discovery"
	"github.com/standardbeagle/scalaidx/internal/errors"
	"github.com/standardbeagle/scalaidx/internal/extract"
	"github.com/standardbeagle/scalaidx/internal/types"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

// DefaultWorkers bounds concurrent file reads during a rebuild
const DefaultWorkers = 8

// Read error handling modes
const (
	OnReadErrorSkip  = "skip"
	OnReadErrorAbort = "abort"
)

// BuilderOptions configures a Builder
type BuilderOptions struct {
	Workers     int
	OnReadError string
}

// RebuildResult describes one finished rebuild
type RebuildResult struct {
	Generation *core.Generation
	Published  bool
	Roots      []*discovery.Result
}

// Builder discovers files under every workspace root, extracts declarations
// concurrently, and publishes the result as one new generation.
type Builder struct {
	state      *core.StateManager
	discoverer *discovery.Discoverer
	extractor  *extract.Extractor
	workers    int
	abort      bool
	inflight   sync.WaitGroup

	// Logf receives operational log lines; defaults to log.Printf
	Logf func(format string, args ...interface{})
	// ReadFile is swappable for tests
	ReadFile func(name string) ([]byte, error)
}

// NewBuilder creates a Builder publishing into state
func NewBuilder(state *core.StateManager, discoverer *discovery.Discoverer, extractor *extract.Extractor, opts BuilderOptions) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if extractor == nil {
		extractor = extract.New(nil)
	}
	return &Builder{
		state:      state,
		discoverer: discoverer,
		extractor:  extractor,
		workers:    opts.Workers,
		abort:      opts.OnReadError == OnReadErrorAbort,
		Logf:       log.Printf,
		ReadFile:   os.ReadFile,
	}
}

// SetLogf routes the builder's and discoverer's log lines through logf
func (b *Builder) SetLogf(logf func(format string, args ...interface{})) {
	b.Logf = logf
	b.discoverer.Logf = logf
}

// Rebuild indexes every root from scratch and publishes the new generation.
// Declarations are ordered by file-list order, then line, then position within
// the line, no matter in which order the concurrent reads complete.
func (b *Builder) Rebuild(ctx context.Context, roots []string) (*RebuildResult, error) {
	seq := b.state.BeginRebuild()
	started := time.Now()
	debug.LogIndexing("Rebuild %d started for %d roots\n", seq, len(roots))

	files, discovered, err := b.discover(ctx, roots)
	if err != nil {
		return nil, err
	}

	perFile := make([][]types.Declaration, len(files))
	readErrs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := b.ReadFile(files[i].AbsolutePath)
			if err != nil {
				readErrs[i] = errors.NewIndexingError("read", err).
					WithFile(files[i].AbsolutePath).
					WithRecoverable(!b.abort)
				return nil
			}
			perFile[i] = b.extractor.Extract(&files[i], string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rebuild cancelled: %w", err)
	}

	failures := errors.NewMultiError(readErrs)
	if err := failures.ErrorOrNil(); err != nil {
		if b.abort {
			b.logf("Rebuild aborted: %v", err)
			return nil, err
		}
		for _, e := range failures.Errors {
			b.logf("Warning: skipping unreadable file: %v", e)
		}
	}

	total := 0
	for _, decls := range perFile {
		total += len(decls)
	}
	ordered := make([]types.Declaration, 0, total)
	for _, decls := range perFile {
		ordered = append(ordered, decls...)
	}

	info := core.BuildInfo{
		Seq:        seq,
		Files:      len(files),
		ReadErrors: len(failures.Errors),
		Started:    started,
	}
	for _, r := range discovered {
		info.Roots = append(info.Roots, r.Root)
		info.Strategies = append(info.Strategies, r.Strategy)
	}

	gen := core.NewGeneration(ordered, info)
	published := b.state.Publish(gen)

	b.logf("Finished indexing %d scala symbols in %dms", gen.Len(), time.Since(started).Milliseconds())
	if !published {
		b.logf("Discarded rebuild %d: a newer rebuild was already published", seq)
	}

	return &RebuildResult{Generation: gen, Published: published, Roots: discovered}, nil
}

// RebuildAsync runs Rebuild on its own goroutine and reports to done, which may
// be nil. Overlapping rebuilds are not serialized; the state manager's policy
// decides which one stays published.
func (b *Builder) RebuildAsync(ctx context.Context, roots []string, done func(*RebuildResult, error)) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		res, err := b.Rebuild(ctx, roots)
		if err != nil {
			b.logf("Rebuild failed: %v", err)
		}
		if done != nil {
			done(res, err)
		}
	}()
}

// Wait blocks until every rebuild started with RebuildAsync has finished
func (b *Builder) Wait() {
	b.inflight.Wait()
}

// discover resolves each root to an absolute path and concatenates the files
// found under it, with root-relative paths computed per root
func (b *Builder) discover(ctx context.Context, roots []string) ([]types.SourceFile, []*discovery.Result, error) {
	var files []types.SourceFile
	results := make([]*discovery.Result, 0, len(roots))

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, nil, errors.NewDiscoveryError("resolve", root, err)
		}

		res, err := b.discoverer.Discover(ctx, abs)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)

		for _, p := range res.Paths {
			files = append(files, types.SourceFile{
				AbsolutePath: p,
				RelativePath: pathutil.StripRoot(p, abs),
			})
		}
	}
	return files, results, nil
}

func (b *Builder) logf(format string, args ...interface{}) {
	if b.Logf != nil {
		b.Logf(format, args...)
	}
}
