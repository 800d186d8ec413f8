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

package uavcan

import (
	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
)

// DriverPack bundles the clock and the CAN driver a node runs on. A node
// built with WithDriverPack owns its pack and closes it on Close; a
// driver passed with WithDriver stays owned by the caller.
//
// On Linux, NewDriverPack assembles a pack around SocketCAN interfaces.
// A pack for any other driver is assembled directly from its fields.
type DriverPack struct {
	Clock  clock.Clock
	Driver can.Driver
}

// Close releases the pack's driver. The clock holds no resources.
func (p *DriverPack) Close() error {
	if p.Driver == nil {
		return nil
	}
	return p.Driver.Close()
}
