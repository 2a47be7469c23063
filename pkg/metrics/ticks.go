// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

// TickType indexes the slots of a tick snapshot. The numeric order is the
// array layout contract shared with every TickSource implementation.
type TickType int

const (
	TickUser TickType = iota
	TickNice
	TickSystem
	TickIdle
	TickIOWait
	TickIRQ
	TickSoftIRQ

	// NumTickTypes is the fixed width of a tick snapshot.
	NumTickTypes = int(TickSoftIRQ) + 1
)

var tickTypeNames = [NumTickTypes]string{"user", "nice", "system", "idle", "iowait", "irq", "softirq"}

func (t TickType) String() string {
	if t < 0 || int(t) >= NumTickTypes {
		return "unknown"
	}
	return tickTypeNames[t]
}

// loadBetweenTicks computes the busy fraction between two cumulative tick
// snapshots. IOWait counts as idle time. Returns 0 when no ticks elapsed or
// when the idle delta is negative (counter rollover or inconsistent read);
// callers rely on the exact 0 fallback, never NaN or a negative ratio.
func loadBetweenTicks(prev, cur []uint64) float64 {
	n := len(cur)
	if len(prev) < n {
		n = len(prev)
	}
	var total int64
	for i := 0; i < n; i++ {
		total += int64(cur[i]) - int64(prev[i])
	}
	if n <= int(TickIOWait) {
		return 0
	}
	idle := int64(cur[TickIdle]) + int64(cur[TickIOWait]) -
		int64(prev[TickIdle]) - int64(prev[TickIOWait])
	if total > 0 && idle >= 0 {
		return float64(total-idle) / float64(total)
	}
	return 0
}

// anyNonzero reports whether the snapshot carries at least one nonzero
// counter. An all-zero snapshot means the source read failed transiently.
func anyNonzero(ticks []uint64) bool {
	for _, t := range ticks {
		if t != 0 {
			return true
		}
	}
	return false
}

func anyNonzeroMatrix(ticks [][]uint64) bool {
	for _, row := range ticks {
		if anyNonzero(row) {
			return true
		}
	}
	return false
}

func cloneTicks(ticks []uint64) []uint64 {
	out := make([]uint64, len(ticks))
	copy(out, ticks)
	return out
}

func cloneMatrix(ticks [][]uint64) [][]uint64 {
	out := make([][]uint64, len(ticks))
	for i, row := range ticks {
		out[i] = cloneTicks(row)
	}
	return out
}
