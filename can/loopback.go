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

package can

import (
	"fmt"
	"sync"
	"time"
)

const loopbackQueueDepth = 256

// Bus is an in-process CAN segment for tests and simulations. Drivers
// opened from the same bus exchange frames with each other.
type Bus struct {
	mu      sync.RWMutex
	closed  bool
	nextIdx int
	drivers map[*Loopback]struct{}
}

// NewBus creates an empty loopback bus
func NewBus() *Bus {
	return &Bus{drivers: make(map[*Loopback]struct{})}
}

// Open attaches a new single-interface driver to the bus
func (b *Bus) Open() *Loopback {
	d := &Loopback{
		rx:   make(chan RxFrame, loopbackQueueDepth),
		done: make(chan struct{}),
	}
	d.bus = b
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		d.dead = true
		close(d.done)
		return d
	}
	d.name = fmt.Sprintf("loop%d", b.nextIdx)
	b.nextIdx++
	b.drivers[d] = struct{}{}
	b.mu.Unlock()
	return d
}

// Close detaches and closes every driver on the bus
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for d := range b.drivers {
		d.markDead()
	}
	b.drivers = nil
	b.mu.Unlock()
	return nil
}

// Loopback is a single-interface driver attached to a Bus. Frames sent
// through it are delivered to every other driver on the same bus; a driver
// whose receive queue is full drops the frame, as a controller would on
// RX overrun.
type Loopback struct {
	bus  *Bus
	name string
	rx   chan RxFrame
	done chan struct{}

	mu   sync.Mutex
	dead bool
}

func (d *Loopback) Send(frame Frame, ifaceMask uint8, deadline time.Time) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if ifaceMask&1 == 0 {
		return ErrNoInterface
	}
	d.mu.Lock()
	dead := d.dead
	d.mu.Unlock()
	if dead {
		return ErrClosed
	}
	d.bus.mu.RLock()
	if d.bus.closed {
		d.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*Loopback, 0, len(d.bus.drivers))
	for t := range d.bus.drivers {
		if t != d {
			targets = append(targets, t)
		}
	}
	d.bus.mu.RUnlock()
	rxf := RxFrame{Frame: frame, Timestamp: time.Now()}
	for _, t := range targets {
		select {
		case t.rx <- rxf:
		default:
		}
	}
	return nil
}

func (d *Loopback) Receive(deadline time.Time) (RxFrame, bool, error) {
	// Drain buffered frames before looking at driver state so that
	// frames delivered before Close are still observable.
	select {
	case f := <-d.rx:
		return f, true, nil
	default:
	}
	d.mu.Lock()
	dead := d.dead
	d.mu.Unlock()
	if dead {
		return RxFrame{}, false, ErrClosed
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return RxFrame{}, false, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case f := <-d.rx:
		return f, true, nil
	case <-timer.C:
		return RxFrame{}, false, nil
	case <-d.done:
		return RxFrame{}, false, ErrClosed
	}
}

func (d *Loopback) InterfaceCount() int {
	return 1
}

func (d *Loopback) InterfaceName(i int) string {
	return d.name
}

func (d *Loopback) Close() error {
	d.bus.mu.Lock()
	if d.bus.drivers != nil {
		delete(d.bus.drivers, d)
	}
	d.bus.mu.Unlock()
	d.markDead()
	return nil
}

func (d *Loopback) markDead() {
	d.mu.Lock()
	if d.dead {
		d.mu.Unlock()
		return
	}
	d.dead = true
	close(d.done)
	d.mu.Unlock()
}
