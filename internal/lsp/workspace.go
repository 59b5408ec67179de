package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/standardbeagle/scalaidx/internal/telemetry"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

// initializeRoots reads the roots announced in the initialize request:
// workspaceFolders first, then rootUri, then the deprecated rootPath
func initializeRoots(params *protocol.InitializeParams) []string {
	if roots := folderRoots(params.WorkspaceFolders); len(roots) > 0 {
		return roots
	}
	if params.RootURI != nil {
		if root, err := pathutil.FileURIToPath(*params.RootURI); err == nil {
			return []string{root}
		}
	}
	if params.RootPath != nil && *params.RootPath != "" {
		return []string{*params.RootPath}
	}
	return nil
}

// folderRoots keeps file:// folders only, converted to paths
func folderRoots(folders []protocol.WorkspaceFolder) []string {
	var roots []string
	for _, f := range folders {
		if !pathutil.IsFileURI(f.URI) {
			continue
		}
		root, err := pathutil.FileURIToPath(f.URI)
		if err != nil || strings.TrimSpace(root) == "" {
			continue
		}
		roots = append(roots, root)
	}
	return roots
}

// workspaceRoots asks the client for its current folders when it supports the
// request, falling back to the initialize roots and then the configured roots
func (s *Server) workspaceRoots() []string {
	s.mu.RLock()
	ask := s.folderRequests
	initRoots := s.initRoots
	s.mu.RUnlock()

	if ask {
		var folders []protocol.WorkspaceFolder
		if s.call(methodWorkspaceFolders, nil, &folders) {
			if roots := folderRoots(folders); len(roots) > 0 {
				return roots
			}
		}
	}
	if len(initRoots) > 0 {
		return initRoots
	}
	return s.opts.Roots
}

// rebuild indexes the current workspace roots and publishes the generation
func (s *Server) rebuild() {
	roots := s.workspaceRoots()
	res, err := s.builder.Rebuild(s.ctx, roots)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logError("index rebuild failed: %v", err)
		}
		return
	}
	if res.Generation != nil {
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
