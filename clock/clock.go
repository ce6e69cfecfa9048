// This file is part of meshnet, a peer-to-peer agent runtime core.
//
// meshnet is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// meshnet is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package clock provides the single monotonic time source every other
// component in the core is built against (spec component B).
package clock

import "time"

// Clock hands out milliseconds elapsed since its own construction. It is
// explicitly constructed once per engine and passed down to every gateway
// and tracker, rather than read from mutable process-wide state (design
// note 9: "Ambient process-wide time epoch").
type Clock struct {
	start time.Time
}

// New returns a Clock whose epoch is the moment of this call.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// SinceEpochMs returns the monotonic number of milliseconds elapsed since
// the Clock was constructed. It is not wall-clock time and is unaffected
// by system clock adjustments because it is computed from time.Time's
// monotonic reading (time.Since uses the monotonic clock reading when
// available).
func (c *Clock) SinceEpochMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Deadline returns the epoch millisecond value that is d from now.
func (c *Clock) Deadline(d time.Duration) uint64 {
	return c.SinceEpochMs() + uint64(d.Milliseconds())
}
