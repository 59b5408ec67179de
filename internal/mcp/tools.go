package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/scalaidx/internal/core"
	idebug "github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/types"
	"github.com/standardbeagle/scalaidx/internal/version"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

type toolHandler = func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// PositionParams addresses a cursor in a file. Line and column are 0-based.
type PositionParams struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type SymbolParams struct {
	Query string `json:"query"`
	Max   int    `json:"max,omitempty"`
}

type ReindexParams struct {
	Wait bool `json:"wait,omitempty"`
}

// DefinitionResponse lists every declaration site for the term under the cursor
type DefinitionResponse struct {
	Locations []types.Location `json:"locations"`
}

type HoverResponse struct {
	Enabled  bool             `json:"enabled"`
	Markdown string           `json:"markdown,omitempty"`
	Matches  []types.Location `json:"matches"`
}

type SymbolResponse struct {
	Query   string               `json:"query"`
	Total   int                  `json:"total"`
	Symbols []types.SymbolResult `json:"symbols"`
}

// StatusResponse reports the published generation and rebuild bookkeeping
type StatusResponse struct {
	Ready       bool                  `json:"ready"`
	Rebuilding  bool                  `json:"rebuilding"`
	Generation  *core.GenerationStats `json:"generation,omitempty"`
	Roots       []RootStatus          `json:"roots,omitempty"`
	Started     uint64                `json:"rebuilds_started"`
	Published   uint64                `json:"rebuilds_published"`
	Dropped     uint64                `json:"rebuilds_dropped"`
	LastRebuild *time.Time            `json:"last_rebuild,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
	Watching    bool                  `json:"watching"`
	Policy      core.RebuildPolicy    `json:"rebuild_policy"`
	Build       string                `json:"build"`
}

type RootStatus struct {
	Root     string `json:"root"`
	Strategy string `json:"strategy"`
	Files    int    `json:"files"`
	Excluded int    `json:"excluded"`
}

func positionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"file": {
				Type:        "string",
				Description: "Absolute path or file:// URI of a Scala source file",
			},
			"line": {
				Type:        "integer",
				Description: "0-based line number",
			},
			"column": {
				Type:        "integer",
				Description: "0-based column in UTF-16 code units",
			},
		},
		Required: []string{"file", "line", "column"},
	}
}

func (s *Server) addTool(tool *mcp.Tool, handler toolHandler) {
	s.handlers[tool.Name] = handler
	s.server.AddTool(tool, handler)
}

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        "definition",
		Description: "Jump to definition: every Scala declaration whose name equals the identifier under the cursor. Matching is by name only, across the whole workspace.",
		InputSchema: positionSchema(),
	}, s.handleDefinition)

	s.addTool(&mcp.Tool{
		Name:        "hover",
		Description: "Markdown list of declaration sites for the identifier under the cursor. Returns nothing when hover is disabled in settings.",
		InputSchema: positionSchema(),
	}, s.handleHover)

	s.addTool(&mcp.Tool{
		Name:        "workspace_symbol",
		Description: "Fuzzy search over every declared Scala name in the workspace. Exact and subsequence matches rank first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Free-text query, case-insensitive. Empty lists everything.",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum results (0 = all)",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleWorkspaceSymbol)

	s.addTool(&mcp.Tool{
		Name:        "index_status",
		Description: "Index statistics: roots, discovery strategy per root, files, symbols, fingerprint and the last rebuild error.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleIndexStatus)

	s.addTool(&mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild the index from disk. Set wait to block until the new generation is published.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"wait": {
					Type:        "boolean",
					Description: "Wait for the rebuild to finish",
				},
			},
		},
	}, s.handleReindex)
}

func decodeArgs(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// toQueryPosition accepts a file:// URI or a path; relative paths resolve
// against the first configured root
func (s *Server) toQueryPosition(p PositionParams) (query.Position, error) {
	if p.File == "" {
		return query.Position{}, fmt.Errorf("file is required")
	}
	if p.Line < 0 || p.Column < 0 {
		return query.Position{}, fmt.Errorf("line and column must be >= 0")
	}

	uri := p.File
	if !pathutil.IsFileURI(uri) {
		path := p.File
		if !filepath.IsAbs(path) && len(s.opts.Roots) > 0 {
			path = filepath.Join(s.opts.Roots[0], path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return query.Position{}, err
		}
		uri = pathutil.PathToFileURI(abs)
	}
	return query.Position{URI: uri, Line: p.Line, Column: p.Column}, nil
}

func (s *Server) handleDefinition(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("definition", func() (*mcp.CallToolResult, error) {
		var p PositionParams
		if err := decodeArgs(req, &p); err != nil {
			return createErrorResponse("definition", err)
		}
		pos, err := s.toQueryPosition(p)
		if err != nil {
			return createErrorResponse("definition", err)
		}
		idebug.LogMCP("definition %s:%d:%d\n", pos.URI, pos.Line, pos.Column)

		done := s.telemetry.Timed("mcp", "definition")
		locs, err := s.service.Definition(pos)
		done(locs)
		if err != nil {
			return createSmartErrorResponse("definition", err, map[string]interface{}{"file": p.File})
		}
		if locs == nil {
			locs = []types.Location{}
		}
		return createJSONResponse(DefinitionResponse{Locations: locs})
	})
}

func (s *Server) handleHover(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("hover", func() (*mcp.CallToolResult, error) {
		var p PositionParams
		if err := decodeArgs(req, &p); err != nil {
			return createErrorResponse("hover", err)
		}
		pos, err := s.toQueryPosition(p)
		if err != nil {
			return createErrorResponse("hover", err)
		}

		done := s.telemetry.Timed("mcp", "hover")
		res, err := s.service.Hover(pos)
		if err != nil {
			done(nil)
			return createSmartErrorResponse("hover", err, map[string]interface{}{"file": p.File})
		}

		out := HoverResponse{
			Enabled: s.state.Settings().HoverEnabled,
			Matches: []types.Location{},
		}
		if res != nil {
			out.Markdown = res.Markdown
			out.Matches = res.Matches
		}
		done(out.Matches)
		return createJSONResponse(out)
	})
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("workspace_symbol", func() (*mcp.CallToolResult, error) {
		var p SymbolParams
		if err := decodeArgs(req, &p); err != nil {
			return createErrorResponse("workspace_symbol", err)
		}
		if p.Max < 0 {
			return createErrorResponse("workspace_symbol", fmt.Errorf("max must be >= 0"))
		}

		done := s.telemetry.Timed("mcp", "workspaceSymbol")
		symbols := s.service.WorkspaceSymbol(p.Query)
		done(symbols)

		total := len(symbols)
		if p.Max > 0 && len(symbols) > p.Max {
			symbols = symbols[:p.Max]
		}
		if symbols == nil {
			symbols = []types.SymbolResult{}
		}
		return createJSONResponse(SymbolResponse{Query: p.Query, Total: total, Symbols: symbols})
	})
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("index_status", func() (*mcp.CallToolResult, error) {
		return createJSONResponse(s.status())
	})
}

func (s *Server) handleReindex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("reindex", func() (*mcp.CallToolResult, error) {
		var p ReindexParams
		if err := decodeArgs(req, &p); err != nil {
			return createErrorResponse("reindex", err)
		}
		if s.ctx.Err() != nil {
			return createErrorResponse("reindex", fmt.Errorf("server is shutting down"))
		}

		if !p.Wait {
			s.triggerRebuild(nil)
			return createJSONResponse(map[string]interface{}{"success": true, "started": true})
		}

		type outcome struct {
			res *indexing.RebuildResult
			err error
		}
		ch := make(chan outcome, 1)
		s.triggerRebuild(func(res *indexing.RebuildResult, err error) {
			ch <- outcome{res, err}
		})

		select {
		case o := <-ch:
			if o.err != nil {
				return createErrorResponse("reindex", o.err)
			}
			return createJSONResponse(map[string]interface{}{
				"success":   true,
				"published": o.res.Published,
				"index":     o.res.Generation.Stats(),
			})
		case <-ctx.Done():
			return createErrorResponse("reindex", ctx.Err())
		}
	})
}

func (s *Server) status() StatusResponse {
	started, published, dropped := s.state.Counters()
	out := StatusResponse{
		Started:   started,
		Published: published,
		Dropped:   dropped,
		Policy:    s.state.Policy(),
		Build:     version.BuildID(),
	}

	if g := s.state.Snapshot(); g != nil {
		stats := g.Stats()
		out.Ready = true
		out.Generation = &stats
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out.Rebuilding = s.rebuilding > 0
	out.Watching = s.watcher != nil
	if !s.lastRebuild.IsZero() {
		t := s.lastRebuild
		out.LastRebuild = &t
	}
	if s.lastErr != nil {
		out.LastError = s.lastErr.Error()
	}
	if s.lastResult != nil {
		for _, r := range s.lastResult.Roots {
			out.Roots = append(out.Roots, RootStatus{
				Root:     r.Root,
				Strategy: r.Strategy,
				Files:    len(r.Paths),
				Excluded: r.Excluded,
			})
		}
	}
	return out
}
