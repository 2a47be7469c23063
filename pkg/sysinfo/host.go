// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// package sysinfo retrieves the host facts surrounding the CPU sampler:
// identification strings, uptime, serial number and load averages.
package sysinfo

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/newrelic/cpumonitor/pkg/log"
)

var hostLog = log.WithComponent("HostInfo")

var (
	serialOnce sync.Once
	serial     string
)

// Uptime returns the seconds elapsed since boot.
func Uptime() (uint64, error) {
	return host.Uptime()
}

// SerialNumber returns a stable identifier for this host. When the platform
// exposes no machine id the value is generated once per process.
func SerialNumber() string {
	serialOnce.Do(func() {
		id, err := host.HostID()
		if err != nil || id == "" {
			hostLog.WithError(err).Debug("No host id available, generating one.")
			id = uuid.NewString()
		}
		serial = id
	})
	return serial
}

// LoadAverage returns the 1, 5 and 15 minute load averages.
func LoadAverage() (one, five, fifteen float64, err error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, 0, 0, err
	}
	return avg.Load1, avg.Load5, avg.Load15, nil
}
