// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build linux

package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// procfsSource reads tick counters straight from /proc/stat.
type procfsSource struct {
	fs procfs.FS
}

func newPlatformTickSource() TickSource {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		sourceLog.WithError(err).Warn("Cannot mount procfs, falling back to gopsutil reader.")
		return newGopsutilSource()
	}
	return &procfsSource{fs: fs}
}

func (s *procfsSource) SystemTicks() ([]uint64, error) {
	stat, err := s.fs.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "reading /proc/stat")
	}
	return ticksFromCPUStat(stat.CPUTotal), nil
}

func (s *procfsSource) PerCoreTicks() ([][]uint64, error) {
	stat, err := s.fs.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "reading /proc/stat")
	}
	// stat.CPU is keyed by cpu index; rows are emitted in index order and
	// the scan stops at the first gap so the layout stays stable.
	rows := make([][]uint64, 0, len(stat.CPU))
	for i := int64(0); ; i++ {
		row, ok := stat.CPU[i]
		if !ok {
			break
		}
		rows = append(rows, ticksFromCPUStat(row))
	}
	return rows, nil
}

func ticksFromCPUStat(s procfs.CPUStat) []uint64 {
	ticks := make([]uint64, NumTickTypes)
	ticks[TickUser] = toTicks(s.User)
	ticks[TickNice] = toTicks(s.Nice)
	ticks[TickSystem] = toTicks(s.System)
	ticks[TickIdle] = toTicks(s.Idle)
	ticks[TickIOWait] = toTicks(s.Iowait)
	ticks[TickIRQ] = toTicks(s.IRQ)
	ticks[TickSoftIRQ] = toTicks(s.SoftIRQ)
	return ticks
}
