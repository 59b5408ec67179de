// Package discovery enumerates candidate source files under a workspace root.
//
// Several strategies are tried in a fixed priority order: version-control listing,
// the find utility, the Windows dir builtin, and finally a built-in directory walk
// that is always available.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
)

// Strategy names, also accepted by the index.strategy config key
const (
	StrategyAuto = "auto"
	StrategyGit  = "git"
	StrategyFind = "find"
	StrategyDir  = "dir"
	StrategyWalk = "walk"
)

// Env is the slice of the environment strategy selection depends on.
// Tests substitute a fake so tool availability is deterministic.
type Env interface {
	LookPath(file string) (string, error)
	Stat(name string) (fs.FileInfo, error)
	GOOS() string
}

// OSEnv is the real process environment
type OSEnv struct{}

func (OSEnv) LookPath(file string) (string, error) { return exec.LookPath(file) }
func (OSEnv) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (OSEnv) GOOS() string                          { return runtime.GOOS }

// Strategy enumerates files under a root whose names carry one of the configured suffixes.
// Returned paths are absolute. A *PartialError comes with a usable list when
// only some entries below the root were unreadable.
type Strategy interface {
	Name() string
	Available(env Env, root string) bool
	Discover(ctx context.Context, root string, suffixes []string) ([]string, error)
}

// DefaultStrategies returns the strategies in priority order
func DefaultStrategies() []Strategy {
	return []Strategy{gitStrategy{}, findStrategy{}, dirStrategy{}, walkStrategy{}}
}

// Select returns the first strategy usable for root in env.
// It falls back to the built-in walk when nothing else is available.
func Select(env Env, root string, strategies []Strategy) Strategy {
	for _, s := range strategies {
		if s.Available(env, root) {
			return s
		}
	}
	return walkStrategy{}
}

// ByName returns the strategy with the given name, or nil
func ByName(name string) Strategy {
	for _, s := range DefaultStrategies() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// remaining returns the strategies after s in priority order
func remaining(strategies []Strategy, s Strategy) []Strategy {
	for i, candidate := range strategies {
		if candidate.Name() == s.Name() {
			return strategies[i+1:]
		}
	}
	return nil
}
