package query

import (
	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/search"
	"github.com/standardbeagle/scalaidx/internal/types"
)

// Service binds the query handlers to a state manager. Every call takes one
// generation snapshot up front and answers entirely from it.
type Service struct {
	state   *core.StateManager
	matcher *search.FuzzyMatcher
	read    LineReader
}

// NewService creates a Service reading lines from disk
func NewService(state *core.StateManager, matcher *search.FuzzyMatcher) *Service {
	if matcher == nil {
		matcher = search.NewFuzzyMatcher(search.DefaultThreshold, 0)
	}
	return &Service{state: state, matcher: matcher, read: ReadLineFromDisk}
}

// WithLineReader replaces the line source, mainly for tests
func (s *Service) WithLineReader(read LineReader) *Service {
	s.read = read
	return s
}

// Definition answers a jump-to-definition request
func (s *Service) Definition(pos Position) ([]types.Location, error) {
	return Definition(s.state.Snapshot(), pos, s.read)
}

// Hover answers a hover request using the current settings snapshot
func (s *Service) Hover(pos Position) (*HoverResult, error) {
	return Hover(s.state.Snapshot(), s.state.Settings(), pos, s.read)
}

// WorkspaceSymbol answers a workspace-wide fuzzy symbol search
func (s *Service) WorkspaceSymbol(query string) []types.SymbolResult {
	return WorkspaceSymbol(s.state.Snapshot(), s.matcher, query)
}

// State exposes the underlying state manager
func (s *Service) State() *core.StateManager {
	return s.state
}
