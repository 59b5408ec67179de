package core

import (
	"fmt"
	"sync/atomic"

	"github.com/standardbeagle/scalaidx/internal/debug"
	"github.com/standardbeagle/scalaidx/internal/types"
)

// RebuildPolicy decides whether a finished rebuild may replace the published generation
type RebuildPolicy string

const (
	// PolicyLastFinished publishes every finished rebuild. Two overlapping rebuilds
	// may publish out of start order.
	PolicyLastFinished RebuildPolicy = "last-finished"
	// PolicyLatestStarted drops a finished rebuild when a rebuild that started
	// later has already been published.
	PolicyLatestStarted RebuildPolicy = "latest-started"
)

// ParseRebuildPolicy validates a policy name; "" selects the default
func ParseRebuildPolicy(s string) (RebuildPolicy, error) {
	switch RebuildPolicy(s) {
	case "":
		return PolicyLastFinished, nil
	case PolicyLastFinished, PolicyLatestStarted:
		return RebuildPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown rebuild policy %q", s)
	}
}

// StateManager owns the two process-wide state cells: the published generation
// and the settings snapshot. Both are replaced wholesale by atomic pointer swap;
// readers take a snapshot at the start of a call and use it throughout.
type StateManager struct {
	generation atomic.Pointer[Generation]
	settings   atomic.Pointer[types.Settings]

	policy    RebuildPolicy
	started   atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewStateManager creates a manager with no generation and default settings
func NewStateManager(policy RebuildPolicy) *StateManager {
	if policy == "" {
		policy = PolicyLastFinished
	}
	m := &StateManager{policy: policy}
	s := types.DefaultSettings()
	m.settings.Store(&s)
	return m
}

// Snapshot returns the published generation, or nil before the first publish
func (m *StateManager) Snapshot() *Generation {
	return m.generation.Load()
}

// BeginRebuild allocates the sequence number for a rebuild that is starting now
func (m *StateManager) BeginRebuild() uint64 {
	return m.started.Add(1)
}

// Publish installs g as the current generation subject to the rebuild policy.
// It reports whether g was installed.
func (m *StateManager) Publish(g *Generation) bool {
	if g == nil {
		return false
	}

	if m.policy == PolicyLastFinished {
		m.generation.Store(g)
		m.published.Add(1)
		return true
	}

	for {
		current := m.generation.Load()
		if current != nil && current.Seq() > g.Seq() {
			m.dropped.Add(1)
			debug.LogIndexing("Dropping rebuild %d: rebuild %d already published\n", g.Seq(), current.Seq())
			return false
		}
		if m.generation.CompareAndSwap(current, g) {
			m.published.Add(1)
			return true
		}
		// Another rebuild published in between, re-check its sequence
	}
}

// Settings returns the current settings snapshot
func (m *StateManager) Settings() types.Settings {
	return *m.settings.Load()
}

// SetSettings replaces the settings snapshot wholesale
func (m *StateManager) SetSettings(s types.Settings) {
	m.settings.Store(&s)
}

// Policy returns the configured rebuild policy
func (m *StateManager) Policy() RebuildPolicy {
	return m.policy
}

// Counters reports how many rebuilds were started, published and dropped
func (m *StateManager) Counters() (started, published, dropped uint64) {
	return m.started.Load(), m.published.Load(), m.dropped.Load()
}
