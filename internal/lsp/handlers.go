package lsp

import (
	"fmt"
	"log"
	rtdebug "runtime/debug"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/types"
)

func (s *Server) definition(_ *glsp.Context, params *protocol.DefinitionParams) (result any, err error) {
	defer s.recoverFromPanic("definition", &err)
	done := s.telemetry.Timed("lsp", "definition")

	locs, err := s.service.Definition(toPosition(params.TextDocumentPositionParams))
	done(locs)
	if err != nil {
		return nil, err
	}
	return toLocations(locs), nil
}

func (s *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	defer s.recoverFromPanic("hover", &err)
	done := s.telemetry.Timed("lsp", "hover")

	res, err := s.service.Hover(toPosition(params.TextDocumentPositionParams))
	if err != nil || res == nil {
		done(nil)
		return nil, err
	}
	done(res.Matches)

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: res.Markdown,
		},
	}, nil
}

func (s *Server) workspaceSymbol(_ *glsp.Context, params *protocol.WorkspaceSymbolParams) (result []protocol.SymbolInformation, err error) {
	defer s.recoverFromPanic("workspaceSymbol", &err)
	done := s.telemetry.Timed("lsp", "workspaceSymbol")

	symbols := s.service.WorkspaceSymbol(params.Query)
	done(symbols)

	result = make([]protocol.SymbolInformation, 0, len(symbols))
	for _, sym := range symbols {
		result = append(result, protocol.SymbolInformation{
			Name:     sym.Name,
			Kind:     protocol.SymbolKind(sym.Kind.SymbolKind()),
			Location: toLocation(sym.Location),
		})
	}
	return result, nil
}

// recoverFromPanic turns a handler panic into an error response
func (s *Server) recoverFromPanic(operation string, err *error) {
	if r := recover(); r != nil {
		log.Printf("PANIC RECOVERED in %s: %v", operation, r)
		log.Printf("Stack trace: %s", rtdebug.Stack())
		*err = fmt.Errorf("%s failed: %v", operation, r)
	}
}

func toPosition(p protocol.TextDocumentPositionParams) query.Position {
	return query.Position{
		URI:    p.TextDocument.URI,
		Line:   int(p.Position.Line),
		Column: int(p.Position.Character),
	}
}

// toLocation builds a zero-width range at the declaration's name
func toLocation(loc types.Location) protocol.Location {
	pos := protocol.Position{
		Line:      protocol.UInteger(loc.Line),
		Character: protocol.UInteger(loc.Column),
	}
	return protocol.Location{
		URI:   loc.URI,
		Range: protocol.Range{Start: pos, End: pos},
	}
}

func toLocations(locs []types.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		out = append(out, toLocation(loc))
	}
	return out
}
