package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads .scalaidx.kdl from projectRoot. It returns nil, nil when the file
// does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	cfg := Default("")
	if err := parseKDL(string(content), cfg); err != nil {
		return nil, err
	}

	root := projectRoot
	if abs, err := filepath.Abs(projectRoot); err == nil {
		root = abs
	}
	cfg.Source = kdlPath
	cfg.resolveRoot(root)
	return cfg, nil
}

// parseKDL applies a KDL document on top of cfg. Unknown nodes are ignored.
func parseKDL(content string, cfg *Config) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "project":
			for _, cn := range n.Children { // project { root "." ; roots "a" "b" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				if nodeName(cn) == "roots" {
					cfg.Project.Roots = append(cfg.Project.Roots, collectStringArgs(cn)...)
				}
			}
		case "index":
			parseIndexNode(n, &cfg.Index)
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "fuzzy_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.FuzzyThreshold = v
					}
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				}
			}
		case "lsp":
			for _, cn := range n.Children {
				assignSimpleString(cn, "settings_section", func(v string) { cfg.LSP.SettingsSection = v })
				if nodeName(cn) == "hover_enabled" {
					if b, ok := firstBoolArg(cn); ok {
						cfg.LSP.HoverEnabled = b
					}
				}
			}
		case "telemetry":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Telemetry.Enabled = b
					}
				case "buffer":
					if v, ok := firstIntArg(cn); ok {
						cfg.Telemetry.Buffer = v
					}
				}
			}
		case "exclude":
			// An exclude node replaces the defaults
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return nil
}

func parseIndexNode(n *document.Node, index *Index) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "suffixes":
			if s := collectStringArgs(cn); len(s) > 0 {
				index.Suffixes = s
			}
		case "strategy":
			if s, ok := firstStringArg(cn); ok {
				index.Strategy = s
			}
		case "workers":
			if v, ok := firstIntArg(cn); ok {
				index.Workers = v
			}
		case "rebuild_policy":
			if s, ok := firstStringArg(cn); ok {
				index.RebuildPolicy = s
			}
		case "on_read_error":
			if s, ok := firstStringArg(cn); ok {
				index.OnReadError = s
			}
		case "watch":
			if b, ok := firstBoolArg(cn); ok {
				index.Watch = b
			}
		case "watch_debounce_ms":
			if v, ok := firstIntArg(cn); ok {
				index.WatchDebounceMs = v
			}
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				index.RespectGitignore = b
			}
		case "detect_build_outputs":
			if b, ok := firstBoolArg(cn); ok {
				index.DetectBuildOutputs = b
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

// collectStringArgs reads inline arguments (exclude "a" "b") or, failing that,
// block children (exclude { "a"; "b" }) where each child's name is the value
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
