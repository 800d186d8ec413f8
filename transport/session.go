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
)

// listener reassembles transfers of one data type for one consumer. Each
// source node gets its own session so interleaved transfers from
// different nodes do not mix.
type listener struct {
	signature           uint64
	handler             func(*Transfer)
	maxTransferInterval time.Duration
	sessions            map[NodeID]*rxSession
}

func newListener(signature uint64, handler func(*Transfer), maxInterval time.Duration) *listener {
	return &listener{
		signature:           signature,
		handler:             handler,
		maxTransferInterval: maxInterval,
		sessions:            make(map[NodeID]*rxSession),
	}
}

// rxSession is the per-source reassembly state
type rxSession struct {
	active bool
	tid    TransferID
	// toggle is the expected toggle bit of the next frame
	toggle bool
	iface  int
	ts     time.Time
	buf    []byte

	// last completed transfer, for duplicate suppression across
	// redundant interfaces
	hasLast bool
	lastTID TransferID
	lastAt  time.Time
}

func (s *rxSession) isDuplicate(tid TransferID, ts time.Time, window time.Duration) bool {
	return s.hasLast && tid == s.lastTID && ts.Sub(s.lastAt) < window
}

func (s *rxSession) noteCompleted(tid TransferID, ts time.Time) {
	s.hasLast = true
	s.lastTID = tid
	s.lastAt = ts
	s.active = false
}

// accept feeds one frame into the listener. A non-nil Transfer means the
// frame completed a transfer. Anonymous frames are stateless and bypass
// the sessions entirely.
func (l *listener) accept(
	cid CANID,
	tail Tail,
	payload []byte,
	ts time.Time,
	iface int,
	dataTypeID uint16,
) (*Transfer, error) {
	if cid.Anonymous {
		if !tail.SingleFrame() {
			return nil, NewError(CodeInvalidMarshalData, "anonymous transfer spans multiple frames")
		}
		if tail.Toggle {
			return nil, NewError(CodeInvalidMarshalData, "nonzero toggle on single-frame transfer")
		}
		return l.makeTransfer(cid, tail, payload, ts, iface, dataTypeID), nil
	}

	sess := l.sessions[cid.Source]
	if sess == nil {
		sess = &rxSession{}
		l.sessions[cid.Source] = sess
	}

	if tail.SingleFrame() {
		if tail.Toggle {
			return nil, NewError(CodeInvalidMarshalData, "nonzero toggle on single-frame transfer")
		}
		if sess.isDuplicate(tail.TransferID, ts, l.maxTransferInterval) {
			return nil, nil
		}
		sess.noteCompleted(tail.TransferID, ts)
		return l.makeTransfer(cid, tail, payload, ts, iface, dataTypeID), nil
	}

	if tail.Start {
		if tail.Toggle {
			return nil, NewError(CodeInvalidMarshalData, "nonzero toggle on transfer start")
		}
		if len(payload) != MaxSingleFramePayload {
			return nil, NewError(CodeInvalidMarshalData, "short first frame of multi-frame transfer")
		}
		if sess.isDuplicate(tail.TransferID, ts, l.maxTransferInterval) {
			return nil, nil
		}
		sess.active = true
		sess.tid = tail.TransferID
		sess.toggle = true
		sess.iface = iface
		sess.ts = ts
		sess.buf = append(sess.buf[:0], payload...)
		return nil, nil
	}

	// continuation frame
	if sess.active && ts.Sub(sess.ts) > l.maxTransferInterval {
		sess.active = false
	}
	if !sess.active {
		return nil, NewError(CodeInvalidMarshalData, "continuation frame without transfer start")
	}
	if tail.TransferID != sess.tid {
		sess.active = false
		return nil, Errorf(
			CodeInvalidMarshalData,
			"transfer id changed mid-transfer: %d != %d",
			tail.TransferID,
			sess.tid,
		)
	}
	if iface != sess.iface {
		// redundant copy of the same transfer on another interface
		return nil, nil
	}
	if tail.Toggle != sess.toggle {
		// duplicated frame
		return nil, nil
	}
	if !tail.End && len(payload) != MaxSingleFramePayload {
		sess.active = false
		return nil, NewError(CodeInvalidMarshalData, "short interior frame of multi-frame transfer")
	}
	sess.buf = append(sess.buf, payload...)
	sess.toggle = !sess.toggle
	if len(sess.buf) > MaxPayloadLength+2 {
		sess.active = false
		return nil, Errorf(CodeInvalidMarshalData, "transfer exceeds %d bytes", MaxPayloadLength)
	}
	if !tail.End {
		return nil, nil
	}

	// last frame received, verify the transfer CRC
	wireCRC := binary.LittleEndian.Uint16(sess.buf[:2])
	data := sess.buf[2:]
	if NewTransferCRC(l.signature).Add(data).Value() != wireCRC {
		sess.active = false
		return nil, NewError(CodeInvalidMarshalData, "transfer crc mismatch")
	}
	sess.noteCompleted(tail.TransferID, ts)
	tr := &Transfer{
		Type:        cid.TransferType(),
		Priority:    cid.Priority,
		DataTypeID:  dataTypeID,
		Source:      cid.Source,
		Destination: cid.Destination,
		TransferID:  tail.TransferID,
		Timestamp:   sess.ts,
		Iface:       sess.iface,
		Payload:     append([]byte(nil), data...),
	}
	return tr, nil
}

func (l *listener) makeTransfer(
	cid CANID,
	tail Tail,
	payload []byte,
	ts time.Time,
	iface int,
	dataTypeID uint16,
) *Transfer {
	return &Transfer{
		Type:        cid.TransferType(),
		Priority:    cid.Priority,
		DataTypeID:  dataTypeID,
		Source:      cid.Source,
		Destination: cid.Destination,
		TransferID:  tail.TransferID,
		Timestamp:   ts,
		Iface:       iface,
		Payload:     append([]byte(nil), payload...),
	}
}
