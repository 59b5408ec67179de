package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/scalaidx/internal/config"
	"github.com/standardbeagle/scalaidx/internal/core"
	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/discovery"
	"github.com/standardbeagle/scalaidx/internal/indexing"
	"github.com/standardbeagle/scalaidx/internal/query"
	"github.com/standardbeagle/scalaidx/internal/search"
	"github.com/standardbeagle/scalaidx/internal/telemetry"
	"github.com/standardbeagle/scalaidx/internal/types"
	"github.com/standardbeagle/scalaidx/internal/version"
)

// runtimeEnv is everything a command needs, wired from one config
type runtimeEnv struct {
	cfg       *config.Config
	state     *core.StateManager
	builder   *indexing.Builder
	service   *query.Service
	telemetry *telemetry.Dispatcher
}

func (r *runtimeEnv) Close() {
	r.builder.Wait()
	r.telemetry.Close()
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		root = abs
	}

	cfg, err := config.LoadWithRoot(c.String("config"), root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if root != "" {
		cfg.Project.Root = root
	}
	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludes...)
	}
	if strategy := c.String("strategy"); strategy != "" {
		cfg.Index.Strategy = strategy
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRuntime(cfg *config.Config) (*runtimeEnv, error) {
	policy, err := core.ParseRebuildPolicy(cfg.Index.RebuildPolicy)
	if err != nil {
		return nil, err
	}

	state := core.NewStateManager(policy)
	state.SetSettings(types.Settings{HoverEnabled: cfg.LSP.HoverEnabled})

	discoverer := discovery.New(discovery.Options{
		Suffixes: cfg.Index.Suffixes,
		Exclude:  cfg.Exclude,
		Strategy: cfg.Index.Strategy,
	})
	builder := indexing.NewBuilder(state, discoverer, nil, indexing.BuilderOptions{
		Workers:     cfg.Index.Workers,
		OnReadError: cfg.Index.OnReadError,
	})
	matcher := search.NewFuzzyMatcher(cfg.Search.FuzzyThreshold, cfg.Search.MaxResults)

	var dispatcher *telemetry.Dispatcher
	if cfg.Telemetry.Enabled {
		dispatcher = telemetry.NewDispatcher(telemetry.DebugSink{}, cfg.Telemetry.Buffer)
	}

	return &runtimeEnv{
		cfg:       cfg,
		state:     state,
		builder:   builder,
		service:   query.NewService(state, matcher),
		telemetry: dispatcher,
	}, nil
}

// setupRuntime is the common prologue of every command
func setupRuntime(c *cli.Context) (*runtimeEnv, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg)
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.FullInfo())
	}

	return &cli.App{
		Name:                   version.ServerName,
		Usage:                  "Scala declaration index for editors and AI assistants",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); defaults to .scalaidx.kdl or .scalaidx.toml in the root",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to index (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/target/**')",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "File discovery strategy: auto, git, find, dir or walk",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Verbose protocol logging on stderr",
			},
		},
		Before: func(c *cli.Context) error {
			verbosity := 0
			if c.Bool("verbose") {
				verbosity = 1
			}
			commonlog.Configure(verbosity, nil)
			return nil
		},
		Action: lspCommand,
		Commands: []*cli.Command{
			{
				Name:   "lsp",
				Usage:  "Serve the Language Server Protocol on stdio (default)",
				Action: lspCommand,
			},
			{
				Name:  "mcp",
				Usage: "Serve Model Context Protocol tools on stdio",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Rebuild the index when source files change",
					},
				},
				Action: mcpCommand,
			},
			{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Build the index and report what was found",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep running and rebuild when source files change",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: indexCommand,
			},
			{
				Name:      "def",
				Usage:     "Print the declaration sites for the identifier at a position",
				ArgsUsage: "FILE LINE COL",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: defCommand,
			},
			{
				Name:      "hover",
				Usage:     "Print the hover markdown for the identifier at a position",
				ArgsUsage: "FILE LINE COL",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: hoverCommand,
			},
			{
				Name:      "symbols",
				Aliases:   []string{"s"},
				Usage:     "Fuzzy search declared names",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
					&cli.IntFlag{Name: "max", Aliases: []string{"m"}, Usage: "Maximum results (0 = all)"},
				},
				Action: symbolsCommand,
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	_ = debug.CloseDebugLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
