// Package mcp exposes the declaration index to AI assistants as Model Context
// Protocol tools over stdio. The index is built when the server starts and can
// follow the workspace through an fsnotify watcher.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/scalaidx/internal/core"
	idebug "github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/telemetry"
	"github.com/standardbeagle/scalaidx/internal/version"
)

// Options configures the MCP server
type Options struct {
	Roots []string
	// Watch rebuilds the index when source files under Roots change
	Watch        bool
	WatchOptions indexing.WatcherOptions
	// LogToFile sends diagnostics to a temp file instead of stderr
	LogToFile bool
}

// Server serves the index tools
type Server struct {
	service   *query.Service
	state     *core.StateManager
	builder   *indexing.Builder
	telemetry *telemetry.Dispatcher
	opts      Options

	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger
	watcher          *indexing.FileWatcher
	handlers         map[string]toolHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	lastResult  *indexing.RebuildResult
	lastErr     error
	lastRebuild time.Time
	rebuilding  int
}

// NewServer registers the tools and routes the builder's log lines to the
// diagnostic logger
func NewServer(service *query.Service, builder *indexing.Builder, dispatcher *telemetry.Dispatcher, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service:          service,
		state:            service.State(),
		builder:          builder,
		telemetry:        dispatcher,
		opts:             opts,
		diagnosticLogger: NewDiagnosticLogger(opts.LogToFile),
		handlers:         make(map[string]toolHandler),
		ctx:              ctx,
		cancel:           cancel,
	}
	builder.SetLogf(s.diagnosticLogger.Printf)

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    version.ServerName,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Start builds the index in the background, starts the optional watcher and
// serves stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	if path := s.diagnosticLogger.GetLogPath(); path != "" {
		idebug.LogMCP("diagnostics written to %s\n", path)
	}

	s.triggerRebuild(nil)

	if s.opts.Watch {
		if err := s.startWatcher(); err != nil {
			s.diagnosticLogger.Errorf("file watcher disabled: %v", err)
		}
	}

	err := s.server.Run(ctx, &mcp.StdioTransport{})
	s.Shutdown(context.Background())
	return err
}

// Shutdown stops the watcher, cancels rebuilds and waits for them to return
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			s.diagnosticLogger.Errorf("stopping watcher: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.builder.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down and releases the diagnostic log
func (s *Server) Close() error {
	_ = s.Shutdown(context.Background())
	return s.diagnosticLogger.Close()
}

// GetHandlerForTesting returns a registered tool handler by name
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h, ok := s.handlers[toolName]; ok {
		return h
	}
	return func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return createErrorResponse("GetHandlerForTesting", fmt.Errorf("unknown tool: %s", toolName))
	}
}

func (s *Server) startWatcher() error {
	w, err := indexing.NewFileWatcher(s.opts.WatchOptions, func(paths []string) {
		s.diagnosticLogger.Printf("%d source files changed, rebuilding", len(paths))
		s.triggerRebuild(nil)
	})
	if err != nil {
		return err
	}
	if err := w.Start(s.opts.Roots...); err != nil {
		_ = w.Stop()
		return err
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// triggerRebuild starts an asynchronous rebuild and records its outcome.
// done, when set, receives the same outcome.
func (s *Server) triggerRebuild(done func(*indexing.RebuildResult, error)) {
	s.mu.Lock()
	s.rebuilding++
	s.mu.Unlock()

	s.builder.RebuildAsync(s.ctx, s.opts.Roots, func(res *indexing.RebuildResult, err error) {
		s.recordRebuild(res, err)
		if done != nil {
			done(res, err)
		}
	})
}

func (s *Server) recordRebuild(res *indexing.RebuildResult, err error) {
	s.mu.Lock()
	s.rebuilding--
	s.lastRebuild = time.Now()
	s.lastErr = err
	if err == nil {
		s.lastResult = res
	}
	s.mu.Unlock()

	if err != nil {
		s.diagnosticLogger.Errorf("rebuild failed: %v", err)
		return
	}
	if res != nil && res.Generation != nil {
		stats := res.Generation.Stats()
		s.telemetry.Emit(telemetry.Event{
			Category: "index",
			Action:   "rebuild",
			Label:    "symbols",
			Value:    stats.Symbols,
			Duration: stats.Elapsed,
		})
	}
}

// recoverFromPanic converts a handler panic into an error result
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Errorf("PANIC RECOVERED in %s: %v", operation, r)
			s.diagnosticLogger.Errorf("Stack trace: %s", debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()
	return handler()
}
