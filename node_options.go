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
	"log/slog"
	"time"

	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
	"github.com/EgoPingvina/gouavcan/protocol"
	"github.com/EgoPingvina/gouavcan/transport"
)

// NodeOptionFunc is a type that represents functions that modify the Node config
type NodeOptionFunc func(*Node)

// WithDriver specifies the CAN driver to use. The driver stays owned by
// the caller; closing the node does not close it.
func WithDriver(driver can.Driver) NodeOptionFunc {
	return func(n *Node) {
		n.driver = driver
	}
}

// WithDriverPack hands the node a clock and driver bundle to run on. The
// node owns the pack and closes it on Close.
func WithDriverPack(pack *DriverPack) NodeOptionFunc {
	return func(n *Node) {
		n.pack = pack
		n.driver = pack.Driver
		n.clk = pack.Clock
	}
}

// WithNodeID specifies the local node id. Without one the node runs in
// passive mode.
func WithNodeID(id transport.NodeID) NodeOptionFunc {
	return func(n *Node) {
		n.id = id
	}
}

// WithClock specifies the clock to use. The default is a system clock
// with a private adjustment offset.
func WithClock(clk clock.Clock) NodeOptionFunc {
	return func(n *Node) {
		n.clk = clk
	}
}

// WithLogger specifies the logger to use. If none is provided, one will
// be created writing to stderr.
func WithLogger(logger *slog.Logger) NodeOptionFunc {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithInterfaceMask restricts transmission to the selected driver
// interfaces. The default is to transmit on all of them.
func WithInterfaceMask(mask uint8) NodeOptionFunc {
	return func(n *Node) {
		n.ifaceMask = mask
	}
}

// WithStatusInterval specifies the NodeStatus broadcast period
func WithStatusInterval(interval time.Duration) NodeOptionFunc {
	return func(n *Node) {
		n.statusInterval = interval
	}
}

// WithNodeName specifies the node name reported by GetNodeInfo, such as
// "com.example.gps"
func WithNodeName(name string) NodeOptionFunc {
	return func(n *Node) {
		n.nodeName = name
	}
}

// WithSoftwareVersion specifies the software version reported by
// GetNodeInfo
func WithSoftwareVersion(version protocol.SoftwareVersion) NodeOptionFunc {
	return func(n *Node) {
		n.swVersion = version
	}
}

// WithHardwareVersion specifies the hardware version reported by
// GetNodeInfo
func WithHardwareVersion(version protocol.HardwareVersion) NodeOptionFunc {
	return func(n *Node) {
		n.hwVersion = version
	}
}

// WithRestartHandler specifies the handler consulted when a valid
// RestartNode request arrives. Without one, restart requests are refused.
func WithRestartHandler(handler RestartHandler) NodeOptionFunc {
	return func(n *Node) {
		n.restartHandler = handler
	}
}
