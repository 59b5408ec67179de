package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/discovery"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/types"
	"github.com/standardbeagle/scalaidx/internal/version"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/Main.scala":    "object Main {\n  val greeter = new Greeter\n}\n",
		"src/Greeter.scala": "class Greeter {\n  def greet = 1\n}\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	state := core.NewStateManager(core.PolicyLastFinished)
	d := discovery.New(discovery.Options{Strategy: discovery.StrategyWalk})
	b := indexing.NewBuilder(state, d, nil, indexing.BuilderOptions{})
	s := NewServer(query.NewService(state, nil), b, nil, Options{Roots: []string{root}})
	s.diagnosticLogger = NoOpLogger
	b.SetLogf(NoOpLogger.Printf)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func indexedServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := writeWorkspace(t)
	s := newTestServer(t, root)
	res, err := s.builder.Rebuild(context.Background(), []string{root})
	require.NoError(t, err)
	s.recordRebuild(res, nil)
	return s, root
}

func callTool(t *testing.T, s *Server, name string, args string) *mcp.CallToolResult {
	t.Helper()
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)},
	}
	result, err := s.GetHandlerForTesting(name)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	return result
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v interface{}) {
	t.Helper()
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestRegisterTools(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	for _, name := range []string{"definition", "hover", "workspace_symbol", "index_status", "reindex"} {
		assert.Contains(t, s.handlers, name)
	}

	result := callTool(t, s, "nope", `{}`)
	assert.True(t, result.IsError)
}

func TestDefinitionTool(t *testing.T) {
	s, root := indexedServer(t)
	greeter := filepath.Join(root, "src", "Greeter.scala")

	tests := []struct {
		name string
		file string
	}{
		{"absolute path", filepath.Join(root, "src", "Main.scala")},
		{"relative path", filepath.Join("src", "Main.scala")},
		{"file uri", pathutil.PathToFileURI(filepath.Join(root, "src", "Main.scala"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := json.Marshal(PositionParams{File: tt.file, Line: 1, Column: 22})
			require.NoError(t, err)

			result := callTool(t, s, "definition", string(args))
			require.False(t, result.IsError)

			var resp DefinitionResponse
			decodeResult(t, result, &resp)
			require.Len(t, resp.Locations, 1)
			assert.Equal(t, greeter, resp.Locations[0].Path)
			assert.Equal(t, 0, resp.Locations[0].Line)
			assert.Equal(t, 6, resp.Locations[0].Column)
		})
	}
}

func TestDefinitionTool_Errors(t *testing.T) {
	s, root := indexedServer(t)

	result := callTool(t, s, "definition", `{"file": 3}`)
	assert.True(t, result.IsError)

	result = callTool(t, s, "definition", `{"line": 0, "column": 0}`)
	assert.True(t, result.IsError)

	result = callTool(t, s, "definition", `{"file": "src/Main.scala", "line": -1, "column": 0}`)
	assert.True(t, result.IsError)

	args, _ := json.Marshal(PositionParams{File: filepath.Join(root, "missing.scala")})
	result = callTool(t, s, "definition", string(args))
	assert.True(t, result.IsError)

	var body map[string]interface{}
	decodeResult(t, result, &body)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "definition", body["operation"])

	// A non-file URI resolves to nothing without an error
	result = callTool(t, s, "definition", `{"file": "untitled:Scratch.scala", "line": 0, "column": 0}`)
	assert.False(t, result.IsError)
	var resp DefinitionResponse
	decodeResult(t, result, &resp)
	assert.Empty(t, resp.Locations)
}

func TestHoverTool(t *testing.T) {
	s, root := indexedServer(t)
	greeterURI := pathutil.PathToFileURI(filepath.Join(root, "src", "Greeter.scala"))
	args, _ := json.Marshal(PositionParams{File: filepath.Join(root, "src", "Main.scala"), Line: 1, Column: 22})

	result := callTool(t, s, "hover", string(args))
	require.False(t, result.IsError)
	var resp HoverResponse
	decodeResult(t, result, &resp)
	assert.True(t, resp.Enabled)
	assert.Equal(t, "- ["+filepath.Join("src", "Greeter.scala")+":1,6]("+greeterURI+"#L1,6)", resp.Markdown)
	require.Len(t, resp.Matches, 1)

	s.state.SetSettings(types.Settings{HoverEnabled: false})
	result = callTool(t, s, "hover", string(args))
	require.False(t, result.IsError)
	resp = HoverResponse{}
	decodeResult(t, result, &resp)
	assert.False(t, resp.Enabled)
	assert.Empty(t, resp.Markdown)
	assert.Empty(t, resp.Matches)
}

func TestWorkspaceSymbolTool(t *testing.T) {
	s, _ := indexedServer(t)

	result := callTool(t, s, "workspace_symbol", `{"query": "greet"}`)
	require.False(t, result.IsError)
	var resp SymbolResponse
	decodeResult(t, result, &resp)
	assert.Equal(t, "greet", resp.Query)
	require.NotEmpty(t, resp.Symbols)
	assert.Equal(t, len(resp.Symbols), resp.Total)
	assert.Equal(t, "greet", resp.Symbols[0].Name, "exact match ranks first")

	result = callTool(t, s, "workspace_symbol", `{"query": "greet", "max": 1}`)
	resp = SymbolResponse{}
	decodeResult(t, result, &resp)
	assert.Len(t, resp.Symbols, 1)
	assert.Greater(t, resp.Total, 1)

	result = callTool(t, s, "workspace_symbol", `{"query": "", "max": -1}`)
	assert.True(t, result.IsError)
}

func TestIndexStatusTool(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	result := callTool(t, s, "index_status", `{}`)
	var status StatusResponse
	decodeResult(t, result, &status)
	assert.False(t, status.Ready)
	assert.Nil(t, status.Generation)

	s, root := indexedServer(t)
	result = callTool(t, s, "index_status", `{}`)
	status = StatusResponse{}
	decodeResult(t, result, &status)
	assert.True(t, status.Ready)
	require.NotNil(t, status.Generation)
	assert.Equal(t, 4, status.Generation.Symbols)
	assert.Equal(t, 2, status.Generation.Files)
	assert.NotEmpty(t, status.Generation.Fingerprint)
	require.Len(t, status.Roots, 1)
	assert.Equal(t, root, status.Roots[0].Root)
	assert.Equal(t, discovery.StrategyWalk, status.Roots[0].Strategy)
	assert.Equal(t, uint64(1), status.Published)
	assert.Equal(t, core.PolicyLastFinished, status.Policy)
	assert.Equal(t, version.BuildID(), status.Build)
	assert.Empty(t, status.LastError)
}

func TestReindexTool(t *testing.T) {
	root := writeWorkspace(t)
	s := newTestServer(t, root)

	result := callTool(t, s, "reindex", `{"wait": true}`)
	require.False(t, result.IsError)
	var body struct {
		Success   bool                 `json:"success"`
		Published bool                 `json:"published"`
		Index     core.GenerationStats `json:"index"`
	}
	decodeResult(t, result, &body)
	assert.True(t, body.Success)
	assert.True(t, body.Published)
	assert.Equal(t, 4, body.Index.Symbols)

	// New declarations show up after the next rebuild
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "Extra.scala"), []byte("trait Extra\n"), 0644))
	result = callTool(t, s, "reindex", `{}`)
	require.False(t, result.IsError)
	s.builder.Wait()
	assert.Equal(t, 5, s.state.Snapshot().Len())

	require.NoError(t, s.Shutdown(context.Background()))
	result = callTool(t, s, "reindex", `{"wait": true}`)
	assert.True(t, result.IsError)
}

func TestRecoverFromPanic(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	var buf bytes.Buffer
	s.diagnosticLogger = newWriterLogger(&buf)

	result, err := s.recoverFromPanic("definition", func() (*mcp.CallToolResult, error) {
		panic("boom")
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Contains(t, buf.String(), "PANIC RECOVERED in definition: boom")
}

func TestDiagnosticLogger(t *testing.T) {
	dl := NewDiagnosticLogger(true)
	defer dl.Close()

	path := dl.GetLogPath()
	if path == "" {
		t.Skip("temp directory not writable")
	}
	defer os.Remove(path)

	dl.Printf("hello %s", "world")
	dl.Errorf("bad %d", 1)
	require.NoError(t, dl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.Contains(t, string(data), "ERROR: bad 1")

	var nilLogger *DiagnosticLogger
	nilLogger.Printf("ignored")
	assert.NoError(t, nilLogger.Close())
	assert.Empty(t, NewDiagnosticLogger(false).GetLogPath())
}
