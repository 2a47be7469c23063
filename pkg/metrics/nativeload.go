// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"sync"
	"time"

	"github.com/newrelic/cpumonitor/pkg/log"
)

var nativeLog = log.WithComponent("NativeLoad")

// nativeLoadDebounce is the minimum spacing between real polls of the native
// instantaneous-load source. Polled faster than its own sampling interval the
// source returns garbage, so closer calls get the cached value.
const nativeLoadDebounce = 200 * time.Millisecond

// nativeLoadCache debounces an optional platform instantaneous-load reading.
// A nil cache means the capability is absent on this platform; availability
// is decided once at construction and never re-probed.
type nativeLoadCache struct {
	mu       sync.Mutex
	read     func() (float64, error)
	last     float64
	lastPoll time.Time
}

func newNativeLoadCache(read func() (float64, error)) *nativeLoadCache {
	if read == nil {
		return nil
	}
	return &nativeLoadCache{read: read}
}

// load returns the native instantaneous CPU load as a ratio in [0,1]. Calls
// within the debounce interval return the cached value without polling.
func (c *nativeLoadCache) load(now time.Time) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastPoll) < nativeLoadDebounce {
		return c.last
	}
	value, err := c.read()
	if err != nil {
		// Source was probed healthy at construction; keep the cached value
		// and leave lastPoll untouched so the next call retries.
		nativeLog.WithError(err).Debug("Native load read failed, returning cached value.")
		return c.last
	}
	c.last = value
	c.lastPoll = now
	return value
}
