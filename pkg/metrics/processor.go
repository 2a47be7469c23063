// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/newrelic/cpumonitor/pkg/log"
)

var sourceLog = log.WithComponent("TickSource")

var procLog = log.WithComponent("Processor")

// staleAfter is how long an accepted snapshot stays fresh. Callers are
// expected to poll about once per second; refreshing slightly early avoids a
// visible stall while still leaving a meaningful delta.
const staleAfter = 950 * time.Millisecond

// tickState holds two generations of an aggregate tick snapshot. current
// always reflects the most recently accepted sample and previous the
// generation right before it; both move together under mu.
type tickState struct {
	mu          sync.Mutex
	previous    []uint64
	current     []uint64
	lastRefresh time.Time
}

// procTickState is the per-logical-processor equivalent of tickState. The row
// count is fixed at construction and never resized.
type procTickState struct {
	mu          sync.Mutex
	previous    [][]uint64
	current     [][]uint64
	lastRefresh time.Time
}

// Processor computes system-wide and per-core CPU utilization from
// periodically sampled cumulative tick counters. All sampling is pull-based:
// a query refreshes the snapshots only when they have gone stale. Aggregate,
// per-core and native-load state are guarded by independent locks, so
// concurrent queries against different scopes do not serialize.
type Processor struct {
	source   TickSource
	clock    func() time.Time
	logical  int
	physical int

	system  tickState
	perCore procTickState
	native  *nativeLoadCache
}

// NewProcessor builds a Processor over the platform tick source and seeds
// both snapshot generations with one unconditional pull, so the first ratio
// computed is always 0 until a second refresh happens.
func NewProcessor() (*Processor, error) {
	logical, err := cpu.Counts(true)
	if err != nil {
		return nil, errors.Wrap(err, "counting logical processors")
	}
	physical, err := cpu.Counts(false)
	if err != nil {
		return nil, errors.Wrap(err, "counting physical processors")
	}
	p, err := newProcessor(newPlatformTickSource(), logical, detectNativeLoad())
	if err != nil {
		return nil, err
	}
	p.physical = physical
	return p, nil
}

func newProcessor(source TickSource, logical int, nativeRead func() (float64, error)) (*Processor, error) {
	p := &Processor{
		source:  source,
		clock:   time.Now,
		logical: logical,
		native:  newNativeLoadCache(nativeRead),
	}
	if err := p.seed(); err != nil {
		return nil, err
	}
	return p, nil
}

// seed pulls once and stores the same values as previous and current.
func (p *Processor) seed() error {
	now := p.clock()

	ticks, err := p.source.SystemTicks()
	if err != nil {
		return errors.Wrap(err, "seeding system ticks")
	}
	p.system.previous = cloneTicks(ticks)
	p.system.current = cloneTicks(ticks)
	p.system.lastRefresh = now

	rows, err := p.source.PerCoreTicks()
	if err != nil {
		return errors.Wrap(err, "seeding per-cpu ticks")
	}
	rows = p.clampRows(rows)
	p.perCore.previous = cloneMatrix(rows)
	p.perCore.current = cloneMatrix(rows)
	p.perCore.lastRefresh = now
	return nil
}

// clampRows pads or truncates a pulled matrix to the construction-time
// logical processor count so the row layout never changes underneath callers.
func (p *Processor) clampRows(rows [][]uint64) [][]uint64 {
	if len(rows) == p.logical {
		return rows
	}
	out := make([][]uint64, p.logical)
	for i := 0; i < p.logical; i++ {
		if i < len(rows) {
			out[i] = rows[i]
		} else {
			out[i] = make([]uint64, NumTickTypes)
		}
	}
	return out
}

// LogicalProcessorCount returns the number of logical processors, fixed at
// construction.
func (p *Processor) LogicalProcessorCount() int {
	return p.logical
}

// PhysicalProcessorCount returns the number of physical cores, fixed at
// construction.
func (p *Processor) PhysicalProcessorCount() int {
	return p.physical
}

// refreshDue is the staleness decision, kept as a pure function of the two
// timestamps so it is testable without touching sampler state.
func refreshDue(now, lastRefresh time.Time) bool {
	return now.Sub(lastRefresh) > staleAfter
}

// refreshSystemTicks pulls a fresh aggregate snapshot and accepts it unless
// it is all zero, which means the read failed transiently; rejected samples
// leave both generations and the refresh timestamp untouched. Callers must
// hold p.system.mu.
func (p *Processor) refreshSystemTicks(now time.Time) error {
	ticks, err := p.source.SystemTicks()
	if err != nil {
		return errors.Wrap(err, "refreshing system ticks")
	}
	if !anyNonzero(ticks) {
		procLog.Debug("Discarding all-zero system tick sample.")
		return nil
	}
	p.system.previous = p.system.current
	p.system.current = cloneTicks(ticks)
	p.system.lastRefresh = now
	return nil
}

// refreshPerCoreTicks is the per-core variant of refreshSystemTicks; the
// all-or-nothing zero check spans the whole matrix. Callers must hold
// p.perCore.mu.
func (p *Processor) refreshPerCoreTicks(now time.Time) error {
	rows, err := p.source.PerCoreTicks()
	if err != nil {
		return errors.Wrap(err, "refreshing per-cpu ticks")
	}
	if !anyNonzeroMatrix(rows) {
		procLog.Debug("Discarding all-zero per-cpu tick sample.")
		return nil
	}
	p.perCore.previous = p.perCore.current
	p.perCore.current = cloneMatrix(p.clampRows(rows))
	p.perCore.lastRefresh = now
	return nil
}

// SystemCPULoadBetweenTicks returns the system CPU utilization in [0,1]
// measured between the two most recent accepted snapshots, refreshing first
// when the current one has gone stale. Right after construction, or whenever
// the counters did not advance, the result is exactly 0.
func (p *Processor) SystemCPULoadBetweenTicks() (float64, error) {
	now := p.clock()

	p.system.mu.Lock()
	defer p.system.mu.Unlock()
	if refreshDue(now, p.system.lastRefresh) {
		if err := p.refreshSystemTicks(now); err != nil {
			return 0, err
		}
	}
	load := loadBetweenTicks(p.system.previous, p.system.current)
	procLog.Tracef("System load between ticks: %f", load)
	return load, nil
}

// SystemCPULoad returns the system CPU utilization in [0,1], preferring the
// native instantaneous source when the platform has one and falling back to
// the tick-delta measurement otherwise.
func (p *Processor) SystemCPULoad() (float64, error) {
	if p.native != nil {
		return p.native.load(p.clock()), nil
	}
	return p.SystemCPULoadBetweenTicks()
}

// ProcessorCPULoadBetweenTicks returns one utilization ratio per logical
// processor, in stable index order. There is no native per-core source; this
// always measures between tick snapshots.
func (p *Processor) ProcessorCPULoadBetweenTicks() ([]float64, error) {
	now := p.clock()

	p.perCore.mu.Lock()
	defer p.perCore.mu.Unlock()
	if refreshDue(now, p.perCore.lastRefresh) {
		if err := p.refreshPerCoreTicks(now); err != nil {
			return nil, err
		}
	}
	loads := make([]float64, p.logical)
	for i := 0; i < p.logical; i++ {
		loads[i] = loadBetweenTicks(p.perCore.previous[i], p.perCore.current[i])
	}
	return loads, nil
}
