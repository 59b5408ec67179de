package indexing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/scalaidx/internal/debug"
)

// DefaultWatchDebounce is the quiet period before a batch of changes triggers a rebuild
const DefaultWatchDebounce = 300 * time.Millisecond

// WatcherOptions configures a FileWatcher
type WatcherOptions struct {
	Suffixes []string
	Exclude  []string
	Debounce time.Duration
}

// FileWatcher monitors workspace roots and calls onChange once per debounced
// batch of source file events. Rebuilds stay whole-tree; the watcher only
// decides when to start one.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	opts     WatcherOptions
	roots    []string
	onChange func(paths []string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending map[string]struct{}

	statsMu         sync.Mutex
	eventsProcessed int64
	batches         int64
}

// NewFileWatcher creates a watcher; Start must be called to begin watching
func NewFileWatcher(opts WatcherOptions, onChange func(paths []string)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatchDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		watcher:  w,
		opts:     opts,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]struct{}),
	}, nil
}

// Start adds recursive watches under every root and begins processing events
func (fw *FileWatcher) Start(roots ...string) error {
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("invalid watch root %s: %w", root, err)
		}
		debug.LogIndexing("Starting file watcher for directory: %s\n", abs)
		fw.roots = append(fw.roots, abs)
		if err := fw.addWatches(abs); err != nil {
			return fmt.Errorf("failed to add watches starting from %s: %w", abs, err)
		}
	}

	fw.wg.Add(1)
	go fw.processEvents()
	return nil
}

// Stop stops watching. Pending events are dropped.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// Stats returns the number of accepted events and triggered batches
func (fw *FileWatcher) Stats() (events, batches int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()
	return fw.eventsProcessed, fw.batches
}

// addWatches recursively adds watches to every non-excluded directory
func (fw *FileWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visited := make(map[string]bool)

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true

		if path != root && fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

// shouldIgnoreDirectory matches a directory against the exclusion globs
func (fw *FileWatcher) shouldIgnoreDirectory(path string) bool {
	rel := fw.relPath(path)
	for _, pattern := range fw.opts.Exclude {
		dirPattern := strings.TrimSuffix(pattern, "/**")
		if matched, _ := doublestar.Match(dirPattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, rel+"/"); matched {
			return true
		}
	}
	return filepath.Base(path) == ".git"
}

// processEvents runs the event loop. Debouncing happens here too, so onChange
// always runs on this goroutine and never after Stop returns.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	timer := time.NewTimer(fw.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.handleEvent(event) {
				timer.Reset(fw.opts.Debounce)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-timer.C:
			fw.flush()
		}
	}
}

// handleEvent records a relevant event and reports whether it was accepted
func (fw *FileWatcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name
	debug.LogIndexing("FileWatcher: received event %v for path %s\n", event.Op, path)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !fw.shouldIgnoreDirectory(path) {
				if err := fw.addWatches(path); err != nil {
					log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
				}
			}
			return false
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !fw.ShouldProcessPath(path) {
		return false
	}
	fw.pending[path] = struct{}{}
	return true
}

// ShouldProcessPath reports whether a file event at path can change the index
func (fw *FileWatcher) ShouldProcessPath(path string) bool {
	matched := false
	for _, suffix := range fw.opts.Suffixes {
		if strings.HasSuffix(strings.ToLower(path), strings.ToLower(suffix)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	rel := fw.relPath(path)
	for _, pattern := range fw.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// relPath returns path relative to the first root containing it, in slash form
func (fw *FileWatcher) relPath(path string) string {
	for _, root := range fw.roots {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// flush hands the accumulated paths to onChange
func (fw *FileWatcher) flush() {
	if len(fw.pending) == 0 {
		return
	}
	paths := make([]string, 0, len(fw.pending))
	for p := range fw.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fw.pending = make(map[string]struct{})

	fw.statsMu.Lock()
	fw.eventsProcessed += int64(len(paths))
	fw.batches++
	fw.statsMu.Unlock()

	log.Printf("Processing %d debounced file events", len(paths))
	if fw.onChange != nil {
		fw.onChange(paths)
	}
}
