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

import (
	"encoding/binary"
	"time"

	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
)

// registryPruneThreshold bounds the outgoing transfer id map before
// expired entries are swept
const registryPruneThreshold = 64

type registryKey struct {
	transferType TransferType
	dataTypeID   uint16
	destination  NodeID
}

type registryEntry struct {
	tid     TransferID
	expires time.Time
}

// Sender decomposes outgoing transfers into frames and hands them to the
// driver. Payloads that fit next to the tail byte go out as single frames;
// longer payloads are prefixed with the transfer CRC and spread over
// full frames with alternating toggle bits. Automatic transfer ids are
// tracked per data type and destination and forgotten after the maximum
// transfer interval.
//
// A Sender is confined to the node's goroutine and needs no locking.
type Sender struct {
	driver              can.Driver
	clock               clock.Clock
	ifaceMask           uint8
	maxTransferInterval time.Duration
	anonymousAllowed    bool
	registry            map[registryKey]*registryEntry
}

// NewSender returns a sender transmitting through the given driver on all
// of its interfaces
func NewSender(driver can.Driver, clk clock.Clock) *Sender {
	return &Sender{
		driver:              driver,
		clock:               clk,
		ifaceMask:           can.AllIfacesMask,
		maxTransferInterval: DefaultMaxTransferInterval,
		registry:            make(map[registryKey]*registryEntry),
	}
}

// SetIfaceMask restricts transmission to the interfaces selected by mask
func (s *Sender) SetIfaceMask(mask uint8) {
	s.ifaceMask = mask
}

// AllowAnonymousTransfers enables publishing without a source node id.
// Anonymous transfers must fit a single frame.
func (s *Sender) AllowAnonymousTransfers() {
	s.anonymousAllowed = true
}

// Publish broadcasts a message transfer. A zero src sends anonymously,
// which must be enabled first.
func (s *Sender) Publish(
	dataTypeID uint16,
	signature uint64,
	prio Priority,
	src NodeID,
	payload []byte,
	deadline time.Time,
) error {
	if !prio.Valid() {
		return Errorf(CodeInvalidParam, "priority %d out of range", prio)
	}
	if !src.Valid() {
		return Errorf(CodeInvalidParam, "source node id %d out of range", src)
	}
	tid := s.nextTID(TransferTypeMessage, dataTypeID, NodeIDBroadcast)
	if src == NodeIDBroadcast {
		if !s.anonymousAllowed {
			return NewError(CodePassiveMode, "anonymous transfers not enabled")
		}
		if len(payload) > MaxSingleFramePayload {
			return Errorf(
				CodeInvalidParam,
				"anonymous transfer of %d bytes does not fit a single frame",
				len(payload),
			)
		}
		// The discriminator keeps concurrent anonymous senders from
		// colliding in arbitration; payload CRC is as good as random.
		disc := transferCRCInitial.Add(payload).Value() & discriminatorMask
		return s.sendTransfer(AnonymousCANID(prio, dataTypeID, disc), signature, tid, payload, deadline)
	}
	return s.sendTransfer(MessageCANID(prio, dataTypeID, src), signature, tid, payload, deadline)
}

// Request sends a service request and returns the transfer id the
// response will carry
func (s *Sender) Request(
	dataTypeID uint8,
	signature uint64,
	prio Priority,
	src NodeID,
	dst NodeID,
	payload []byte,
	deadline time.Time,
) (TransferID, error) {
	if !prio.Valid() {
		return 0, Errorf(CodeInvalidParam, "priority %d out of range", prio)
	}
	if !src.IsUnicast() {
		return 0, NewError(CodePassiveMode, "service request requires a source node id")
	}
	if !dst.IsUnicast() {
		return 0, Errorf(CodeInvalidParam, "service destination %s is not unicast", dst)
	}
	tid := s.nextTID(TransferTypeRequest, uint16(dataTypeID), dst)
	id := ServiceCANID(prio, dataTypeID, true, src, dst)
	if err := s.sendTransfer(id, signature, tid, payload, deadline); err != nil {
		return 0, err
	}
	return tid, nil
}

// Respond sends a service response echoing the request's transfer id
func (s *Sender) Respond(
	dataTypeID uint8,
	signature uint64,
	prio Priority,
	src NodeID,
	dst NodeID,
	tid TransferID,
	payload []byte,
	deadline time.Time,
) error {
	if !prio.Valid() {
		return Errorf(CodeInvalidParam, "priority %d out of range", prio)
	}
	if !src.IsUnicast() {
		return NewError(CodePassiveMode, "service response requires a source node id")
	}
	if !dst.IsUnicast() {
		return Errorf(CodeInvalidParam, "service destination %s is not unicast", dst)
	}
	id := ServiceCANID(prio, dataTypeID, false, src, dst)
	return s.sendTransfer(id, signature, tid, payload, deadline)
}

func (s *Sender) sendTransfer(
	canID uint32,
	signature uint64,
	tid TransferID,
	payload []byte,
	deadline time.Time,
) error {
	if len(payload) > MaxPayloadLength {
		return Errorf(
			CodeInvalidParam,
			"payload of %d bytes exceeds the maximum of %d",
			len(payload),
			MaxPayloadLength,
		)
	}
	if len(payload) <= MaxSingleFramePayload {
		data := make([]byte, 0, len(payload)+1)
		data = append(data, payload...)
		data = append(data, Tail{Start: true, End: true, TransferID: tid}.Byte())
		return s.sendFrame(canID, data, deadline)
	}
	crc := NewTransferCRC(signature).Add(payload)
	stream := make([]byte, 0, len(payload)+2)
	stream = binary.LittleEndian.AppendUint16(stream, crc.Value())
	stream = append(stream, payload...)
	toggle := false
	for first := true; len(stream) > 0; first = false {
		n := MaxSingleFramePayload
		if n > len(stream) {
			n = len(stream)
		}
		tail := Tail{
			Start:      first,
			End:        n == len(stream),
			Toggle:     toggle,
			TransferID: tid,
		}
		data := make([]byte, 0, n+1)
		data = append(data, stream[:n]...)
		data = append(data, tail.Byte())
		if err := s.sendFrame(canID, data, deadline); err != nil {
			return err
		}
		stream = stream[n:]
		toggle = !toggle
	}
	return nil
}

func (s *Sender) sendFrame(canID uint32, data []byte, deadline time.Time) error {
	frame := can.NewExtendedFrame(canID, data)
	if err := s.driver.Send(frame, s.ifaceMask, deadline); err != nil {
		return WrapError(CodeDriver, "frame transmission", err)
	}
	return nil
}

// nextTID hands out the cyclic transfer id for the given flow, starting a
// fresh sequence when the previous one has gone stale
func (s *Sender) nextTID(tt TransferType, dataTypeID uint16, dst NodeID) TransferID {
	now := s.clock.Now()
	if len(s.registry) > registryPruneThreshold {
		for k, e := range s.registry {
			if now.After(e.expires) {
				delete(s.registry, k)
			}
		}
	}
	key := registryKey{transferType: tt, dataTypeID: dataTypeID, destination: dst}
	e := s.registry[key]
	if e == nil || now.After(e.expires) {
		e = &registryEntry{}
		s.registry[key] = e
	}
	tid := e.tid
	e.tid = tid.Next()
	e.expires = now.Add(s.maxTransferInterval)
	return tid
}
