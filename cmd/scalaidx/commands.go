package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/lsp"
	"github.com/standardbeagle/scalaidx/internal/mcp"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/pkg/pathutil"
)

func lspCommand(c *cli.Context) error {
	debug.SetProtocolMode(true)

	rt, err := setupRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := lsp.NewServer(rt.service, rt.builder, rt.telemetry, lsp.Options{
		SettingsSection: rt.cfg.LSP.SettingsSection,
		Roots:           rt.cfg.Roots(),
		Debug:           c.Bool("verbose"),
	})
	return server.RunStdio()
}

func mcpCommand(c *cli.Context) error {
	debug.SetProtocolMode(true)
	if debug.IsDebugEnabled() {
		if path, err := debug.InitDebugLogFile(); err == nil {
			fmt.Fprintf(os.Stderr, "debug log: %s\n", path)
		}
	}

	rt, err := setupRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := mcp.NewServer(rt.service, rt.builder, rt.telemetry, mcp.Options{
		Roots:        rt.cfg.Roots(),
		Watch:        c.Bool("watch") || rt.cfg.Index.Watch,
		WatchOptions: watchOptions(rt),
		LogToFile:    true,
	})
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debug.LogMCP("Starting MCP server with stdio transport...\n")
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func watchOptions(rt *runtimeEnv) indexing.WatcherOptions {
	return indexing.WatcherOptions{
		Suffixes: rt.cfg.Index.Suffixes,
		Exclude:  rt.cfg.Exclude,
		Debounce: time.Duration(rt.cfg.Index.WatchDebounceMs) * time.Millisecond,
	}
}

// rootReport is the per-root part of the index command's output
type rootReport struct {
	Root     string `json:"root"`
	Strategy string `json:"strategy"`
	Files    int    `json:"files"`
	Excluded int    `json:"excluded"`
}

type indexReport struct {
	Roots       []rootReport `json:"roots"`
	Files       int          `json:"files"`
	ReadErrors  int          `json:"read_errors"`
	Symbols     int          `json:"symbols"`
	UniqueNames int          `json:"unique_names"`
	Fingerprint string       `json:"fingerprint"`
	ElapsedMs   int64        `json:"elapsed_ms"`
}

func newIndexReport(res *indexing.RebuildResult) indexReport {
	stats := res.Generation.Stats()
	report := indexReport{
		Files:       stats.Files,
		ReadErrors:  stats.ReadErrors,
		Symbols:     stats.Symbols,
		UniqueNames: stats.UniqueNames,
		Fingerprint: stats.Fingerprint,
		ElapsedMs:   stats.Elapsed.Milliseconds(),
	}
	for _, r := range res.Roots {
		report.Roots = append(report.Roots, rootReport{
			Root:     r.Root,
			Strategy: r.Strategy,
			Files:    len(r.Paths),
			Excluded: r.Excluded,
		})
	}
	return report
}

func writeIndexReport(w io.Writer, report indexReport, asJSON bool) error {
	if asJSON {
		return writeJSON(w, report)
	}
	for _, r := range report.Roots {
		fmt.Fprintf(w, "%s: %d files via %s (%d excluded)\n", r.Root, r.Files, r.Strategy, r.Excluded)
	}
	fmt.Fprintf(w, "Indexed %d symbols (%d unique names) from %d files in %dms\n",
		report.Symbols, report.UniqueNames, report.Files, report.ElapsedMs)
	if report.ReadErrors > 0 {
		fmt.Fprintf(w, "Skipped %d unreadable files\n", report.ReadErrors)
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", report.Fingerprint)
	return nil
}

// reportWriter serializes reports from overlapping rebuild callbacks
type reportWriter struct {
	mu     sync.Mutex
	w      io.Writer
	asJSON bool
}

func (r *reportWriter) write(res *indexing.RebuildResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return writeIndexReport(r.w, newIndexReport(res), r.asJSON)
}

func indexCommand(c *cli.Context) error {
	rt, err := setupRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Operational log lines go to stderr only when watching
	if !c.Bool("watch") {
		rt.builder.SetLogf(func(string, ...interface{}) {})
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports := &reportWriter{w: c.App.Writer, asJSON: c.Bool("json")}

	res, err := rt.builder.Rebuild(ctx, rt.cfg.Roots())
	if err != nil {
		return err
	}
	if err := reports.write(res); err != nil {
		return err
	}

	if !c.Bool("watch") {
		return nil
	}

	watcher, err := indexing.NewFileWatcher(watchOptions(rt), func(paths []string) {
		rt.builder.RebuildAsync(ctx, rt.cfg.Roots(), func(res *indexing.RebuildResult, err error) {
			if err != nil {
				return
			}
			_ = reports.write(res)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Start(rt.cfg.Roots()...); err != nil {
		_ = watcher.Stop()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Fprintln(os.Stderr, "Watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// positionArgs parses FILE LINE COL. LINE and COL are 0-based.
func positionArgs(c *cli.Context, root string) (query.Position, error) {
	if c.NArg() != 3 {
		return query.Position{}, fmt.Errorf("usage: %s %s FILE LINE COL", c.App.Name, c.Command.Name)
	}
	args := c.Args()

	line, err := strconv.Atoi(args.Get(1))
	if err != nil || line < 0 {
		return query.Position{}, fmt.Errorf("invalid line %q", args.Get(1))
	}
	col, err := strconv.Atoi(args.Get(2))
	if err != nil || col < 0 {
		return query.Position{}, fmt.Errorf("invalid column %q", args.Get(2))
	}

	uri := args.Get(0)
	if !pathutil.IsFileURI(uri) {
		path := uri
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		uri = pathutil.PathToFileURI(filepath.Clean(path))
	}
	return query.Position{URI: uri, Line: line, Column: col}, nil
}

// indexOnce builds the index for one-shot lookup commands
func indexOnce(c *cli.Context) (*runtimeEnv, error) {
	rt, err := setupRuntime(c)
	if err != nil {
		return nil, err
	}
	rt.builder.SetLogf(func(string, ...interface{}) {})
	if _, err := rt.builder.Rebuild(c.Context, rt.cfg.Roots()); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func defCommand(c *cli.Context) error {
	rt, err := indexOnce(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	pos, err := positionArgs(c, rt.cfg.Project.Root)
	if err != nil {
		return err
	}
	locs, err := rt.service.Definition(pos)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, locs)
	}
	for _, loc := range locs {
		fmt.Fprintf(c.App.Writer, "%s:%d:%d\n", loc.Path, loc.Line+1, loc.Column+1)
	}
	return nil
}

func hoverCommand(c *cli.Context) error {
	rt, err := indexOnce(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	pos, err := positionArgs(c, rt.cfg.Project.Root)
	if err != nil {
		return err
	}
	res, err := rt.service.Hover(pos)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, res)
	}
	if res != nil {
		fmt.Fprintln(c.App.Writer, res.Markdown)
	}
	return nil
}

func symbolsCommand(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: %s symbols QUERY", c.App.Name)
	}
	if c.Int("max") < 0 {
		return fmt.Errorf("--max must be >= 0")
	}

	rt, err := indexOnce(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	symbols := rt.service.WorkspaceSymbol(c.Args().First())
	if limit := c.Int("max"); limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, symbols)
	}
	for _, sym := range symbols {
		fmt.Fprintf(c.App.Writer, "%-12s %s  %s:%d:%d\n", sym.Kind, sym.Name, sym.Location.Path, sym.Location.Line+1, sym.Location.Column+1)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
