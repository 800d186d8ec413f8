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

// Package protocol defines the standard data types every node is expected
// to speak: the periodic status broadcast, node identification, debug log
// records, and remote restart.
package protocol

import (
	"time"

	"github.com/EgoPingvina/gouavcan/dsdl"
)

// NodeStatusTypeID is the data type id of the status broadcast
const NodeStatusTypeID = 341

// NodeStatusType describes uavcan.protocol.NodeStatus
var NodeStatusType = dsdl.MustMessageType(NodeStatusTypeID, "uavcan.protocol.NodeStatus")

const (
	HealthOK       uint8 = 0
	HealthWarning  uint8 = 1
	HealthError    uint8 = 2
	HealthCritical uint8 = 3
)

const (
	ModeOperational    uint8 = 0
	ModeInitialization uint8 = 1
	ModeMaintenance    uint8 = 2
	ModeSoftwareUpdate uint8 = 3
	ModeOffline        uint8 = 7
)

const (
	// DefaultStatusInterval is the broadcast period used unless
	// configured otherwise
	DefaultStatusInterval = 500 * time.Millisecond

	// MaxStatusInterval is the largest period a compliant node may use
	MaxStatusInterval = 1 * time.Second

	// OfflineTimeout is how long without a status broadcast before
	// observers must consider a node offline
	OfflineTimeout = 3 * time.Second
)

// NodeStatus is the periodic broadcast reporting a node's liveness and
// basic condition
type NodeStatus struct {
	dsdl.StructAsArray
	Uptime                   uint32 // seconds since startup
	Health                   uint8
	Mode                     uint8
	SubMode                  uint8
	VendorSpecificStatusCode uint16
}

// HealthString renders a health value for humans
func HealthString(health uint8) string {
	switch health {
	case HealthOK:
		return "ok"
	case HealthWarning:
		return "warning"
	case HealthError:
		return "error"
	case HealthCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ModeString renders a mode value for humans
func ModeString(mode uint8) string {
	switch mode {
	case ModeOperational:
		return "operational"
	case ModeInitialization:
		return "initialization"
	case ModeMaintenance:
		return "maintenance"
	case ModeSoftwareUpdate:
		return "software-update"
	case ModeOffline:
		return "offline"
	default:
		return "unknown"
	}
}
