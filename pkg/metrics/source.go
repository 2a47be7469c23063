// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

// ticksPerSecond converts the seconds reported by the sources into the
// clock-tick unit kept in snapshots. Matches USER_HZ on every supported
// kernel; the unit only needs to be consistent, deltas cancel it out.
const ticksPerSecond = 100

// TickSource supplies cumulative CPU time counters, absolute since boot.
// SystemTicks returns one NumTickTypes-wide array for the whole machine;
// PerCoreTicks returns one such row per logical processor, in a stable order.
type TickSource interface {
	SystemTicks() ([]uint64, error)
	PerCoreTicks() ([][]uint64, error)
}

func toTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds * ticksPerSecond)
}
