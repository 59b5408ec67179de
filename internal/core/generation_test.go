package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scalaidx/internal/types"
)

func sampleDecls() []types.Declaration {
	a := &types.SourceFile{AbsolutePath: "/ws/A.scala", RelativePath: "A.scala"}
	b := &types.SourceFile{AbsolutePath: "/ws/B.scala", RelativePath: "B.scala"}
	return []types.Declaration{
		types.NewDeclaration("Foo", types.DeclKindClass, a, 0, 6),
		types.NewDeclaration("bar", types.DeclKindFunction, a, 1, 6),
		types.NewDeclaration("Foo", types.DeclKindClass, b, 0, 7),
		types.NewDeclaration("baz", types.DeclKindVariable, b, 2, 4),
		types.NewDeclaration("bar", types.DeclKindFunction, b, 3, 4),
	}
}

func TestNewGeneration_Buckets(t *testing.T) {
	g := NewGeneration(sampleDecls(), BuildInfo{Seq: 1, Files: 2})

	assert.Equal(t, []string{types.Key("Foo"), types.Key("bar"), types.Key("baz")}, g.keys)

	foo := g.Lookup(types.Key("Foo"))
	require.Len(t, foo, 2)
	assert.Equal(t, "/ws/A.scala", foo[0].File.AbsolutePath)
	assert.Equal(t, "/ws/B.scala", foo[1].File.AbsolutePath)

	assert.Empty(t, g.Lookup("Foo"), "un-namespaced names never hit")
	assert.Empty(t, g.Lookup(types.Key("missing")))
}

func TestNewGeneration_FlatIsBucketConcatenation(t *testing.T) {
	g := NewGeneration(sampleDecls(), BuildInfo{})

	total := 0
	var concat []types.Declaration
	for _, key := range g.keys {
		bucket := g.Lookup(key)
		total += len(bucket)
		concat = append(concat, bucket...)
	}
	assert.Equal(t, total, g.Len())
	assert.Equal(t, concat, g.Flat())

	names := make([]string, 0, g.Len())
	for _, d := range g.Flat() {
		names = append(names, d.DisplayName)
	}
	assert.Equal(t, []string{"Foo", "Foo", "bar", "bar", "baz"}, names)
}

func TestNewGeneration_LowerNames(t *testing.T) {
	g := NewGeneration(sampleDecls(), BuildInfo{})
	require.Len(t, g.LowerNames(), g.Len())
	assert.Equal(t, "foo", g.LowerNames()[0])
}

func TestNewGeneration_Stats(t *testing.T) {
	started := time.Now().Add(-50 * time.Millisecond)
	g := NewGeneration(sampleDecls(), BuildInfo{
		Seq:        3,
		Roots:      []string{"/ws"},
		Strategies: []string{"walk"},
		Files:      2,
		ReadErrors: 1,
		Started:    started,
	})

	stats := g.Stats()
	assert.Equal(t, uint64(3), stats.Seq)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.ReadErrors)
	assert.Equal(t, 5, stats.Symbols)
	assert.Equal(t, 3, stats.UniqueNames)
	assert.NotEmpty(t, stats.Fingerprint)
	assert.GreaterOrEqual(t, stats.Elapsed, 50*time.Millisecond)
}

func TestNewGeneration_FingerprintIdempotent(t *testing.T) {
	g1 := NewGeneration(sampleDecls(), BuildInfo{Seq: 1})
	g2 := NewGeneration(sampleDecls(), BuildInfo{Seq: 2})
	assert.Equal(t, g1.Stats().Fingerprint, g2.Stats().Fingerprint)

	changed := sampleDecls()
	changed[1].Line = 9
	g3 := NewGeneration(changed, BuildInfo{})
	assert.NotEqual(t, g1.Stats().Fingerprint, g3.Stats().Fingerprint)
}

func TestNewGeneration_Empty(t *testing.T) {
	g := NewGeneration(nil, BuildInfo{})
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.keys)
	assert.Empty(t, g.Flat())
}

func TestGeneration_NilSafe(t *testing.T) {
	var g *Generation
	assert.Nil(t, g.Lookup(types.Key("Foo")))
	assert.Nil(t, g.Flat())
	assert.Nil(t, g.LowerNames())
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, uint64(0), g.Seq())
	assert.Equal(t, GenerationStats{}, g.Stats())
}

func TestStateManager_Defaults(t *testing.T) {
	m := NewStateManager("")
	assert.Nil(t, m.Snapshot())
	assert.Equal(t, types.DefaultSettings(), m.Settings())
	assert.Equal(t, PolicyLastFinished, m.Policy())
}

func TestStateManager_SettingsReplacedWholesale(t *testing.T) {
	m := NewStateManager(PolicyLastFinished)
	m.SetSettings(types.Settings{HoverEnabled: false})
	assert.False(t, m.Settings().HoverEnabled)
	m.SetSettings(types.DefaultSettings())
	assert.True(t, m.Settings().HoverEnabled)
}

func TestStateManager_LastFinishedPublishesOutOfOrder(t *testing.T) {
	m := NewStateManager(PolicyLastFinished)
	older := m.BeginRebuild()
	newer := m.BeginRebuild()

	assert.True(t, m.Publish(NewGeneration(nil, BuildInfo{Seq: newer})))
	assert.True(t, m.Publish(NewGeneration(nil, BuildInfo{Seq: older})))
	assert.Equal(t, older, m.Snapshot().Seq())
}

func TestStateManager_LatestStartedDropsStale(t *testing.T) {
	m := NewStateManager(PolicyLatestStarted)
	older := m.BeginRebuild()
	newer := m.BeginRebuild()

	assert.True(t, m.Publish(NewGeneration(nil, BuildInfo{Seq: newer})))
	assert.False(t, m.Publish(NewGeneration(nil, BuildInfo{Seq: older})))
	assert.Equal(t, newer, m.Snapshot().Seq())

	started, published, dropped := m.Counters()
	assert.Equal(t, uint64(2), started)
	assert.Equal(t, uint64(1), published)
	assert.Equal(t, uint64(1), dropped)
}

func TestStateManager_PublishNil(t *testing.T) {
	m := NewStateManager(PolicyLastFinished)
	assert.False(t, m.Publish(nil))
	assert.Nil(t, m.Snapshot())
}

func TestStateManager_ConcurrentReadersSeeWholeGenerations(t *testing.T) {
	m := NewStateManager(PolicyLatestStarted)
	decls := sampleDecls()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Publish(NewGeneration(decls, BuildInfo{Seq: m.BeginRebuild()}))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if g := m.Snapshot(); g != nil {
					assert.Equal(t, len(decls), g.Len())
				}
			}
		}()
	}
	wg.Wait()

	started, _, _ := m.Counters()
	assert.Equal(t, started, m.Snapshot().Seq(), "highest started rebuild ends up published")
}

func TestParseRebuildPolicy(t *testing.T) {
	p, err := ParseRebuildPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLastFinished, p)

	p, err = ParseRebuildPolicy("latest-started")
	require.NoError(t, err)
	assert.Equal(t, PolicyLatestStarted, p)

	_, err = ParseRebuildPolicy("single-flight")
	assert.Error(t, err)
}
