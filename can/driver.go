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

// Package can provides the classic CAN frame model and the bus drivers the
// node layer runs on: SocketCAN for Linux network interfaces, SLCAN for
// serial adapters, and an in-process loopback bus for tests.
package can

import (
	"errors"
	"time"
)

// AllIfacesMask selects every interface of a driver
const AllIfacesMask uint8 = 0xFF

// MaxInterfaces is the number of redundant interfaces a driver may expose,
// bounded by the width of the interface mask
const MaxInterfaces = 8

var (
	// ErrClosed is returned when using a driver after Close
	ErrClosed = errors.New("can: driver closed")

	// ErrNoInterface is returned when an interface mask selects no
	// interface present on the driver
	ErrNoInterface = errors.New("can: interface mask selects no interface")

	// ErrTxTimeout is returned when a frame could not be queued for
	// transmission before its deadline
	ErrTxTimeout = errors.New("can: transmit timed out")
)

// Driver is a group of redundant CAN interfaces. Implementations must be
// safe for use from multiple goroutines.
type Driver interface {
	// Send queues the frame for transmission on every interface selected
	// by ifaceMask, where bit i selects interface i. It blocks until the
	// frame is queued everywhere or the deadline passes.
	Send(frame Frame, ifaceMask uint8, deadline time.Time) error

	// Receive blocks until a frame arrives on any interface or the
	// deadline passes. The second return value reports whether a frame
	// was received; a deadline expiry is not an error.
	Receive(deadline time.Time) (RxFrame, bool, error)

	// InterfaceCount returns the number of interfaces in the group
	InterfaceCount() int

	// InterfaceName returns a human-readable name for interface i
	InterfaceName(i int) string

	// Close releases the underlying interfaces. Close is idempotent.
	Close() error
}
