// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build !linux

package metrics

func newPlatformTickSource() TickSource {
	return newGopsutilSource()
}
