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

// Package transport implements the CAN bus transport layer: identifier
// encoding, transfer decomposition and reassembly, cyclic transfer id
// bookkeeping and routing of completed transfers to listeners.
package transport

import (
	"strconv"
	"time"
)

// NodeID identifies a node on the bus. The zero value means broadcast on
// the destination side and anonymous on the source side.
type NodeID uint8

const (
	// NodeIDBroadcast is the zero NodeID
	NodeIDBroadcast NodeID = 0

	// NodeIDMax is the largest assignable node id
	NodeIDMax NodeID = 127
)

// IsUnicast reports whether the id addresses a single node
func (n NodeID) IsUnicast() bool {
	return n >= 1 && n <= NodeIDMax
}

// Valid reports whether the id fits the 7-bit field
func (n NodeID) Valid() bool {
	return n <= NodeIDMax
}

func (n NodeID) String() string {
	if n == NodeIDBroadcast {
		return "broadcast"
	}
	return strconv.Itoa(int(n))
}

// TransferID is the 5-bit cyclic counter distinguishing consecutive
// transfers between the same endpoints
type TransferID uint8

// TransferIDMax is the largest transfer id value before wrap-around
const TransferIDMax TransferID = 31

// Next returns the id incremented with wrap-around
func (t TransferID) Next() TransferID {
	return (t + 1) & TransferIDMax
}

// Priority is the 5-bit transfer priority. Lower values win bus
// arbitration.
type Priority uint8

const (
	PriorityHighest Priority = 0
	PriorityDefault Priority = 16
	PriorityLowest  Priority = 31
)

// Valid reports whether the priority fits the 5-bit field
func (p Priority) Valid() bool {
	return p <= Priority(PriorityLowest)
}

// TransferType distinguishes the three classes of transfers on the bus
type TransferType uint8

const (
	TransferTypeMessage TransferType = iota
	TransferTypeRequest
	TransferTypeResponse
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeMessage:
		return "message"
	case TransferTypeRequest:
		return "request"
	case TransferTypeResponse:
		return "response"
	default:
		return "unknown"
	}
}

const (
	// MaxPayloadLength is the largest transfer payload the reassembler
	// accepts: a 63-frame transfer carrying 5 bytes in the first frame
	// (after the transfer CRC) and 7 in each of the rest
	MaxPayloadLength = 5 + 62*7

	// MaxSingleFramePayload is the largest payload that fits a single
	// frame next to the tail byte
	MaxSingleFramePayload = 7

	// DefaultMaxTransferInterval bounds how long a partial transfer or a
	// transfer id session stays relevant
	DefaultMaxTransferInterval = 60 * time.Second
)

// Transfer is a fully reassembled incoming transfer
type Transfer struct {
	Type       TransferType
	Priority   Priority
	DataTypeID uint16
	// Source is the sending node, zero for anonymous transfers
	Source NodeID
	// Destination is the addressed node for service transfers and zero
	// for broadcast messages
	Destination NodeID
	TransferID  TransferID
	// Timestamp is the arrival time of the first frame
	Timestamp time.Time
	// Iface is the index of the interface the transfer arrived on
	Iface   int
	Payload []byte
}
