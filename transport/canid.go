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

package transport

// 29-bit identifier layout:
//
//	message:   [28:24] priority [23:8] data type id      [7] 0 [6:0] source
//	anonymous: [28:24] priority [23:10] discriminator
//	           [9:8] data type id low bits               [7] 0 [6:0] 0
//	service:   [28:24] priority [23:16] data type id
//	           [15] request-not-response [14:8] destination [7] 1 [6:0] source
const (
	canIDServiceFlag = 1 << 7
	canIDRequestFlag = 1 << 15

	discriminatorMask = 0x3FFF
)

// MessageCANID builds the identifier of a broadcast message frame
func MessageCANID(prio Priority, dataTypeID uint16, src NodeID) uint32 {
	return uint32(prio&0x1F)<<24 |
		uint32(dataTypeID)<<8 |
		uint32(src&0x7F)
}

// AnonymousCANID builds the identifier of an anonymous message frame. The
// discriminator pseudo-randomizes arbitration between anonymous senders;
// only the two lowest bits of the data type id survive.
func AnonymousCANID(prio Priority, dataTypeID uint16, discriminator uint16) uint32 {
	return uint32(prio&0x1F)<<24 |
		uint32(discriminator&discriminatorMask)<<10 |
		uint32(dataTypeID&0x03)<<8
}

// ServiceCANID builds the identifier of a service frame
func ServiceCANID(prio Priority, dataTypeID uint8, request bool, src NodeID, dst NodeID) uint32 {
	id := uint32(prio&0x1F)<<24 |
		uint32(dataTypeID)<<16 |
		uint32(dst&0x7F)<<8 |
		canIDServiceFlag |
		uint32(src&0x7F)
	if request {
		id |= canIDRequestFlag
	}
	return id
}

// CANID is a decoded 29-bit identifier
type CANID struct {
	Priority  Priority
	Service   bool
	Request   bool
	Anonymous bool
	// DataTypeID carries only its two lowest bits for anonymous frames
	DataTypeID  uint16
	Source      NodeID
	Destination NodeID
}

// ParseCANID decodes a 29-bit extended identifier
func ParseCANID(id uint32) CANID {
	out := CANID{
		Priority: Priority(id >> 24 & 0x1F),
		Source:   NodeID(id & 0x7F),
		Service:  id&canIDServiceFlag != 0,
	}
	if out.Service {
		out.DataTypeID = uint16(id >> 16 & 0xFF)
		out.Request = id&canIDRequestFlag != 0
		out.Destination = NodeID(id >> 8 & 0x7F)
	} else {
		out.DataTypeID = uint16(id >> 8)
		out.Anonymous = out.Source == NodeIDBroadcast
		if out.Anonymous {
			out.DataTypeID &= 0x03
		}
	}
	return out
}

// TransferType maps the identifier class to the transfer type
func (c CANID) TransferType() TransferType {
	switch {
	case !c.Service:
		return TransferTypeMessage
	case c.Request:
		return TransferTypeRequest
	default:
		return TransferTypeResponse
	}
}

// Tail flag bits
const (
	TailStartOfTransfer = 1 << 7
	TailEndOfTransfer   = 1 << 6
	TailToggle          = 1 << 5
)

// Tail is the decoded form of the tail byte closing every frame
type Tail struct {
	Start      bool
	End        bool
	Toggle     bool
	TransferID TransferID
}

// ParseTail decodes a tail byte
func ParseTail(b byte) Tail {
	return Tail{
		Start:      b&TailStartOfTransfer != 0,
		End:        b&TailEndOfTransfer != 0,
		Toggle:     b&TailToggle != 0,
		TransferID: TransferID(b) & TransferIDMax,
	}
}

// Byte encodes the tail back into wire form
func (t Tail) Byte() byte {
	b := byte(t.TransferID & TransferIDMax)
	if t.Start {
		b |= TailStartOfTransfer
	}
	if t.End {
		b |= TailEndOfTransfer
	}
	if t.Toggle {
		b |= TailToggle
	}
	return b
}

// SingleFrame reports whether the tail closes a single-frame transfer
func (t Tail) SingleFrame() bool {
	return t.Start && t.End
}
