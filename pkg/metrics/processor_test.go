// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTickSource struct {
	systemFn    func() ([]uint64, error)
	perCoreFn   func() ([][]uint64, error)
	systemPulls int
	matrixPulls int
}

func (f *fakeTickSource) SystemTicks() ([]uint64, error) {
	f.systemPulls++
	return f.systemFn()
}

func (f *fakeTickSource) PerCoreTicks() ([][]uint64, error) {
	f.matrixPulls++
	return f.perCoreFn()
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func constSource(system []uint64, matrix [][]uint64) *fakeTickSource {
	return &fakeTickSource{
		systemFn:  func() ([]uint64, error) { return cloneTicks(system), nil },
		perCoreFn: func() ([][]uint64, error) { return cloneMatrix(matrix), nil },
	}
}

func newTestProcessor(t *testing.T, source TickSource, logical int, clock *fakeClock) *Processor {
	t.Helper()
	p := &Processor{source: source, clock: clock.Now, logical: logical}
	require.NoError(t, p.seed())
	return p
}

var (
	seedTicks = []uint64{100, 0, 50, 850, 0, 0, 0}
	// 40 ticks elapsed over seedTicks, 20 of them idle.
	halfBusyTicks = []uint64{110, 0, 60, 870, 0, 0, 0}
)

func singleRow(ticks []uint64) [][]uint64 {
	return [][]uint64{cloneTicks(ticks)}
}

func TestSystemCPULoadBetweenTicksFirstQueryIsZero(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)

	load, err := p.SystemCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.Zero(t, load, "seeded previous == current must yield zero load")
	assert.Equal(t, 1, source.systemPulls, "fresh snapshot must not trigger a pull")
}

func TestSystemCPULoadBetweenTicksRefreshesWhenStale(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)

	source.systemFn = func() ([]uint64, error) { return cloneTicks(halfBusyTicks), nil }
	clock.advance(time.Second)

	load, err := p.SystemCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.InDelta(t, 0.5, load, 0.0001)
	assert.Equal(t, 2, source.systemPulls, "staleness must trigger exactly one pull")
}

func TestSystemCPULoadBetweenTicksNoRefreshWithinThreshold(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)

	clock.advance(900 * time.Millisecond)

	_, err := p.SystemCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.Equal(t, 1, source.systemPulls)
}

func TestSystemCPULoadBetweenTicksRejectsAllZeroSample(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)
	seededRefresh := p.system.lastRefresh

	source.systemFn = func() ([]uint64, error) { return make([]uint64, NumTickTypes), nil }
	clock.advance(time.Second)

	load, err := p.SystemCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.Zero(t, load)
	assert.Equal(t, seedTicks, p.system.previous, "rejected sample must not touch previous")
	assert.Equal(t, seedTicks, p.system.current, "rejected sample must not touch current")
	assert.Equal(t, seededRefresh, p.system.lastRefresh, "rejected sample must not touch the refresh time")

	// Still stale, so the next query retries and a good sample is accepted.
	source.systemFn = func() ([]uint64, error) { return cloneTicks(halfBusyTicks), nil }
	clock.advance(time.Second)

	load, err = p.SystemCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.InDelta(t, 0.5, load, 0.0001)
	assert.Equal(t, 3, source.systemPulls)
}

func TestSystemCPULoadBetweenTicksPropagatesSourceFailure(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)

	sourceErr := errors.New("proc unreadable")
	source.systemFn = func() ([]uint64, error) { return nil, sourceErr }
	clock.advance(time.Second)

	_, err := p.SystemCPULoadBetweenTicks()

	require.Error(t, err)
	assert.ErrorIs(t, err, sourceErr)
}

func TestProcessorCPULoadBetweenTicksIndependentCores(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	seedMatrix := [][]uint64{cloneTicks(seedTicks), cloneTicks(seedTicks)}
	source := constSource(seedTicks, seedMatrix)
	p := newTestProcessor(t, source, 2, clock)

	// Core 0 runs half busy; core 1 does not advance at all.
	source.perCoreFn = func() ([][]uint64, error) {
		return [][]uint64{cloneTicks(halfBusyTicks), cloneTicks(seedTicks)}, nil
	}
	clock.advance(time.Second)

	loads, err := p.ProcessorCPULoadBetweenTicks()

	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.InDelta(t, 0.5, loads[0], 0.0001)
	assert.Zero(t, loads[1], "an idle core must not be affected by a busy sibling")
}

func TestProcessorCPULoadBetweenTicksKeepsFixedCoreCount(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	seedMatrix := [][]uint64{cloneTicks(seedTicks), cloneTicks(seedTicks)}
	source := constSource(seedTicks, seedMatrix)
	p := newTestProcessor(t, source, 2, clock)

	// A core went offline: the source reports a single row now.
	source.perCoreFn = func() ([][]uint64, error) {
		return [][]uint64{cloneTicks(halfBusyTicks)}, nil
	}
	clock.advance(time.Second)

	loads, err := p.ProcessorCPULoadBetweenTicks()

	require.NoError(t, err)
	assert.Len(t, loads, 2, "row count is fixed at construction")
	assert.InDelta(t, 0.5, loads[0], 0.0001)
}

func TestSystemCPULoadPrefersNativeSource(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)
	p.native = newNativeLoadCache(func() (float64, error) { return 0.42, nil })

	clock.advance(time.Second)

	load, err := p.SystemCPULoad()

	require.NoError(t, err)
	assert.InDelta(t, 0.42, load, 0.0001)
	assert.Equal(t, 1, source.systemPulls, "native path must not pull tick counters")
}

func TestSystemCPULoadFallsBackToTicks(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	source := constSource(seedTicks, singleRow(seedTicks))
	p := newTestProcessor(t, source, 1, clock)

	source.systemFn = func() ([]uint64, error) { return cloneTicks(halfBusyTicks), nil }
	clock.advance(time.Second)

	load, err := p.SystemCPULoad()

	require.NoError(t, err)
	assert.InDelta(t, 0.5, load, 0.0001)
}

func TestRefreshDue(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.False(t, refreshDue(now, now))
	assert.False(t, refreshDue(now, now.Add(-staleAfter)))
	assert.True(t, refreshDue(now, now.Add(-staleAfter-time.Millisecond)))
}
