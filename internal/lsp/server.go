// Package lsp adapts the query service to the Language Server Protocol over stdio.
//
// Settings synchronization runs in one of two modes chosen at initialize: pull mode
// (the client advertises workspace.configuration) asks the client for the settings
// section on every change notification, push mode reads the section out of the
// notification payload. Index rebuilds run after initialized and after every save.
package lsp

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/telemetry"
	"github.com/standardbeagle/scalaidx/internal/version"
)

// Client-bound methods
const (
	methodWorkspaceConfiguration = "workspace/configuration"
	methodWorkspaceFolders       = "workspace/workspaceFolders"
	methodRegisterCapability     = "client/registerCapability"
	methodLogMessage             = "window/logMessage"
	methodDidChangeConfiguration = "workspace/didChangeConfiguration"
)

type Options struct {
	// SettingsSection is the configuration section holding hoverEnabled
	SettingsSection string
	// Roots are indexed when the client reports no usable workspace folder
	Roots []string
	// Debug enables glsp's own protocol logging
	Debug bool
}

// Server holds the LSP session state. Handlers may run concurrently; the
// index and settings are read through the StateManager's atomic cells.
type Server struct {
	state     *core.StateManager
	builder   *indexing.Builder
	service   *query.Service
	telemetry *telemetry.Dispatcher
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.RWMutex
	client         *glsp.Context
	pullConfig     bool
	folderRequests bool
	initRoots      []string
}

// NewServer wires the builder's log output to the client's log window
func NewServer(service *query.Service, builder *indexing.Builder, dispatcher *telemetry.Dispatcher, opts Options) *Server {
	if opts.SettingsSection == "" {
		opts.SettingsSection = "scalaidx"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		state:     service.State(),
		builder:   builder,
		service:   service,
		telemetry: dispatcher,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}
	builder.SetLogf(s.logMessage)
	return s
}

// Handler returns the protocol handler table
func (s *Server) Handler() *protocol.Handler {
	return &protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		// Documents are read from disk; open buffers are not tracked
		TextDocumentDidOpen:   func(*glsp.Context, *protocol.DidOpenTextDocumentParams) error { return nil },
		TextDocumentDidChange: func(*glsp.Context, *protocol.DidChangeTextDocumentParams) error { return nil },
		TextDocumentDidClose:  func(*glsp.Context, *protocol.DidCloseTextDocumentParams) error { return nil },
		TextDocumentDidSave:   s.didSave,

		TextDocumentHover:      s.hover,
		TextDocumentDefinition: s.definition,
		WorkspaceSymbol:        s.workspaceSymbol,

		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
	}
}

// RunStdio serves the protocol on stdin/stdout until the client disconnects
func (s *Server) RunStdio() error {
	defer s.Close()
	srv := glspserver.NewServer(s.Handler(), version.ServerName, s.opts.Debug)
	return srv.RunStdio()
}

// Close cancels in-flight rebuilds and waits for background work
func (s *Server) Close() {
	s.cancel()
	s.Wait()
}

// Wait blocks until background settings and rebuild work has finished
func (s *Server) Wait() {
	s.wg.Wait()
	s.builder.Wait()
}

// Capabilities is the static capability set: definition, hover, workspace symbol
// and whole-document sync
func Capabilities() protocol.ServerCapabilities {
	openClose := true
	change := protocol.TextDocumentSyncKindFull
	return protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: &openClose,
			Change:    &change,
			Save:      true,
		},
		HoverProvider:           true,
		DefinitionProvider:      true,
		WorkspaceSymbolProvider: true,
	}
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.bind(ctx)

	ws := params.Capabilities.Workspace
	s.mu.Lock()
	s.pullConfig = ws != nil && ws.Configuration != nil && *ws.Configuration
	s.folderRequests = ws != nil && ws.WorkspaceFolders != nil && *ws.WorkspaceFolders
	s.initRoots = initializeRoots(params)
	s.mu.Unlock()

	debug.LogLSP("initialize: pull=%v folders=%v roots=%v\n", s.PullMode(), s.folderRequests, s.initRoots)

	v := version.Version
	return protocol.InitializeResult{
		Capabilities: Capabilities(),
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    version.ServerName,
			Version: &v,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.bind(ctx)
	s.goAsync(func() {
		if s.PullMode() {
			s.registerConfigurationChange()
		}
		s.updateSettings(nil)
		s.rebuild()
	})
	return nil
}

func (s *Server) shutdown(*glsp.Context) error {
	s.cancel()
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.bind(ctx)
	debug.LogLSP("didSave %s: rebuilding\n", params.TextDocument.URI)
	s.goAsync(s.rebuild)
	return nil
}

func (s *Server) didChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	s.bind(ctx)
	s.goAsync(func() { s.updateSettings(params) })
	return nil
}

// PullMode reports whether settings are fetched from the client
func (s *Server) PullMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pullConfig
}

// bind remembers the most recent client connection for server-initiated messages
func (s *Server) bind(ctx *glsp.Context) {
	if ctx == nil {
		return
	}
	s.mu.Lock()
	s.client = ctx
	s.mu.Unlock()
}

// goAsync runs fn off the request goroutine. Client requests block on the
// response, which the connection cannot deliver while a handler is still running.
func (s *Server) goAsync(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Server) call(method string, params any, result any) bool {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || client.Call == nil {
		return false
	}
	client.Call(method, params, result)
	return true
}

func (s *Server) notify(method string, params any) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || client.Notify == nil {
		return
	}
	client.Notify(method, params)
}

// logMessage writes to stderr and mirrors the line to the client's log window
func (s *Server) logMessage(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	s.notify(methodLogMessage, protocol.LogMessageParams{Type: protocol.MessageTypeLog, Message: msg})
}

func (s *Server) logError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	s.notify(methodLogMessage, protocol.LogMessageParams{Type: protocol.MessageTypeError, Message: msg})
}

func (s *Server) registerConfigurationChange() {
	params := protocol.RegistrationParams{
		Registrations: []protocol.Registration{{
			ID:     methodDidChangeConfiguration,
			Method: methodDidChangeConfiguration,
		}},
	}
	var result any
	s.call(methodRegisterCapability, params, &result)
}
