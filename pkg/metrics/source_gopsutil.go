// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// gopsutilSource reads tick counters through gopsutil, which works on every
// platform the agent supports. On Linux the procfs source is preferred.
type gopsutilSource struct {
	cpuTimes func(bool) ([]cpu.TimesStat, error)
}

func newGopsutilSource() *gopsutilSource {
	return &gopsutilSource{cpuTimes: cpu.Times}
}

func (s *gopsutilSource) SystemTicks() ([]uint64, error) {
	times, err := s.cpuTimes(false)
	if err != nil {
		return nil, errors.Wrap(err, "reading aggregate cpu times")
	}
	// in container envs we might get an empty array
	if len(times) == 0 {
		return make([]uint64, NumTickTypes), nil
	}
	return ticksFromTimes(times[0]), nil
}

func (s *gopsutilSource) PerCoreTicks() ([][]uint64, error) {
	times, err := s.cpuTimes(true)
	if err != nil {
		return nil, errors.Wrap(err, "reading per-cpu times")
	}
	rows := make([][]uint64, len(times))
	for i := range times {
		rows[i] = ticksFromTimes(times[i])
	}
	return rows, nil
}

func ticksFromTimes(t cpu.TimesStat) []uint64 {
	ticks := make([]uint64, NumTickTypes)
	ticks[TickUser] = toTicks(t.User)
	ticks[TickNice] = toTicks(t.Nice)
	ticks[TickSystem] = toTicks(t.System)
	ticks[TickIdle] = toTicks(t.Idle)
	ticks[TickIOWait] = toTicks(t.Iowait)
	ticks[TickIRQ] = toTicks(t.Irq)
	ticks[TickSoftIRQ] = toTicks(t.Softirq)
	return ticks
}

// detectNativeLoad probes the platform for an instantaneous CPU load reading.
// The probe doubles as the first measurement baseline; when it fails the
// capability is reported as absent and never retried.
func detectNativeLoad() func() (float64, error) {
	read := func() (float64, error) {
		pcts, err := cpu.Percent(0, false)
		if err != nil {
			return 0, err
		}
		if len(pcts) == 0 {
			return 0, errors.New("no cpu utilization reported")
		}
		return pcts[0] / 100, nil
	}
	if _, err := read(); err != nil {
		nativeLog.WithError(err).Debug("Native instantaneous load not available.")
		return nil
	}
	return read
}
