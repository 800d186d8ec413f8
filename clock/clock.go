// Copyright 2026 EgoPingvina
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides the time sources a node runs on: a monotonic
// reading for deadlines and timers, and a UTC reading that can absorb
// corrections learned from the bus (e.g. from a time synchronization
// master).
package clock

import (
	"os"
	"sync"
	"time"
)

// AdjustmentMode selects how UTC corrections are applied
type AdjustmentMode int

const (
	// AdjustmentModeSystemWide slews the operating system clock.
	// Requires sufficient privilege.
	AdjustmentModeSystemWide AdjustmentMode = iota

	// AdjustmentModePerDriverPrivate keeps corrections local to the
	// process, leaving the operating system clock untouched
	AdjustmentModePerDriverPrivate
)

func (m AdjustmentMode) String() string {
	switch m {
	case AdjustmentModeSystemWide:
		return "system-wide"
	case AdjustmentModePerDriverPrivate:
		return "per-driver-private"
	default:
		return "unknown"
	}
}

// DetectAdjustmentMode picks the system-wide mode when the process has the
// privilege to slew the operating system clock, and the private mode
// otherwise.
func DetectAdjustmentMode() AdjustmentMode {
	if os.Geteuid() == 0 {
		return AdjustmentModeSystemWide
	}
	return AdjustmentModePerDriverPrivate
}

// Clock provides the node's time sources
type Clock interface {
	// Now returns the current time backed by a monotonic reading,
	// suitable for deadline and interval arithmetic
	Now() time.Time

	// UTC returns wall time with accumulated corrections applied
	UTC() time.Time

	// AdjustUTC applies a UTC correction according to the adjustment
	// mode. Corrections accumulate.
	AdjustUTC(offset time.Duration) error
}

// SystemClock is the default Clock, reading the operating system clock
type SystemClock struct {
	mode AdjustmentMode

	mu            sync.Mutex
	privateOffset time.Duration
}

// NewSystemClock returns a system clock applying UTC corrections in the
// given mode
func NewSystemClock(mode AdjustmentMode) *SystemClock {
	return &SystemClock{mode: mode}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

func (c *SystemClock) UTC() time.Time {
	c.mu.Lock()
	offset := c.privateOffset
	c.mu.Unlock()
	return time.Now().Add(offset).UTC()
}

func (c *SystemClock) AdjustUTC(offset time.Duration) error {
	if c.mode == AdjustmentModeSystemWide {
		return adjustSystemClock(offset)
	}
	c.mu.Lock()
	c.privateOffset += offset
	c.mu.Unlock()
	return nil
}

// Mode returns the adjustment mode the clock was created with
func (c *SystemClock) Mode() AdjustmentMode {
	return c.mode
}
