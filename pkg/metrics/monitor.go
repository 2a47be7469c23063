// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/multierr"

	"github.com/newrelic/cpumonitor/pkg/log"
	"github.com/newrelic/cpumonitor/pkg/sysinfo"
)

var cpuLog = log.WithComponent("CPUMonitor")

type CPUSample struct {
	CPULoad             float64   `json:"cpuLoad"`
	CPULoadBetweenTicks float64   `json:"cpuLoadBetweenTicks"`
	PerCoreLoad         []float64 `json:"perCoreCpuLoad,omitempty"`
	*LoadSample
	UptimeSeconds uint64 `json:"uptimeSeconds,omitempty"`
}

type LoadSample struct {
	LoadOne     float64 `json:"loadAverageOneMinute"`
	LoadFive    float64 `json:"loadAverageFiveMinute"`
	LoadFifteen float64 `json:"loadAverageFifteenMinute"`
}

// CPUMonitor assembles full CPU samples out of the Processor plus host facts.
// Host-fact readers are fields so tests can stub them out.
type CPUMonitor struct {
	processor *Processor
	perCore   bool
	uptime    func() (uint64, error)
	loadAvg   func() (one, five, fifteen float64, err error)
}

// NewCPUMonitor builds a monitor over the platform tick sources. perCore
// controls whether samples carry one utilization ratio per logical processor.
func NewCPUMonitor(perCore bool) (*CPUMonitor, error) {
	processor, err := NewProcessor()
	if err != nil {
		return nil, err
	}
	return &CPUMonitor{
		processor: processor,
		perCore:   perCore,
		uptime:    sysinfo.Uptime,
		loadAvg:   sysinfo.LoadAverage,
	}, nil
}

// Processor exposes the underlying sampler for callers that only want the
// raw utilization queries.
func (m *CPUMonitor) Processor() *Processor {
	return m.processor
}

func (m *CPUMonitor) Sample() (sample *CPUSample, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("panic in CPUMonitor.Sample: %v\nStack: %s", panicErr, debug.Stack())
		}
	}()

	load, err := m.processor.SystemCPULoad()
	if err != nil {
		return nil, err
	}
	tickLoad, err := m.processor.SystemCPULoadBetweenTicks()
	if err != nil {
		return nil, err
	}

	sample = &CPUSample{
		CPULoad:             load,
		CPULoadBetweenTicks: tickLoad,
	}

	if m.perCore {
		perCore, err := m.processor.ProcessorCPULoadBetweenTicks()
		if err != nil {
			return nil, err
		}
		sample.PerCoreLoad = perCore
	}

	// Host facts are decoration; their failures don't void the sample.
	var facts error
	if one, five, fifteen, lerr := m.loadAvg(); lerr != nil {
		facts = multierr.Append(facts, lerr)
	} else {
		sample.LoadSample = &LoadSample{LoadOne: one, LoadFive: five, LoadFifteen: fifteen}
	}
	if up, uerr := m.uptime(); uerr != nil {
		facts = multierr.Append(facts, uerr)
	} else {
		sample.UptimeSeconds = up
	}
	if facts != nil {
		cpuLog.WithError(facts).Debug("Some host facts are unavailable.")
	}

	return sample, nil
}
