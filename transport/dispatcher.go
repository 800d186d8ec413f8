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
	"errors"
	"time"

	"github.com/EgoPingvina/gouavcan/can"
)

type responseKey struct {
	dataTypeID uint8
	server     NodeID
	tid        TransferID
}

// Dispatcher reassembles incoming frames and routes completed transfers
// to listeners: any number of message subscriptions per data type, at
// most one server per service type, and one-shot response listeners keyed
// by service type, server and transfer id.
//
// A Dispatcher is confined to the node's goroutine and needs no locking.
type Dispatcher struct {
	maxTransferInterval time.Duration
	messages            map[uint16][]*Subscription
	servers             map[uint8]*listener
	responses           map[responseKey]*listener
}

// NewDispatcher returns an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		maxTransferInterval: DefaultMaxTransferInterval,
		messages:            make(map[uint16][]*Subscription),
		servers:             make(map[uint8]*listener),
		responses:           make(map[responseKey]*listener),
	}
}

// Subscription is a registered message listener handle
type Subscription struct {
	d          *Dispatcher
	dataTypeID uint16
	l          *listener
}

// Close removes the subscription. Closing twice is a no-op.
func (s *Subscription) Close() {
	if s.d == nil {
		return
	}
	subs := s.d.messages[s.dataTypeID]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(s.d.messages, s.dataTypeID)
	} else {
		s.d.messages[s.dataTypeID] = subs
	}
	s.d = nil
}

// SubscribeMessage registers a listener for broadcast messages of the
// given type. Multiple subscriptions per type are allowed.
func (d *Dispatcher) SubscribeMessage(
	dataTypeID uint16,
	signature uint64,
	handler func(*Transfer),
) (*Subscription, error) {
	if handler == nil {
		return nil, NewError(CodeInvalidParam, "nil message handler")
	}
	sub := &Subscription{
		d:          d,
		dataTypeID: dataTypeID,
		l:          newListener(signature, handler, d.maxTransferInterval),
	}
	d.messages[dataTypeID] = append(d.messages[dataTypeID], sub)
	return sub, nil
}

// RegisterServer registers the handler for incoming requests of the given
// service type. Only one server per type may exist.
func (d *Dispatcher) RegisterServer(
	dataTypeID uint8,
	signature uint64,
	handler func(*Transfer),
) error {
	if handler == nil {
		return NewError(CodeInvalidParam, "nil request handler")
	}
	if _, ok := d.servers[dataTypeID]; ok {
		return Errorf(CodeBusy, "server already registered for service type %d", dataTypeID)
	}
	d.servers[dataTypeID] = newListener(signature, handler, d.maxTransferInterval)
	return nil
}

// UnregisterServer removes the server for the given service type
func (d *Dispatcher) UnregisterServer(dataTypeID uint8) {
	delete(d.servers, dataTypeID)
}

// ExpectResponse registers a one-shot listener for the response to a
// request previously sent with the given transfer id. The listener is
// removed when the response completes or when canceled.
func (d *Dispatcher) ExpectResponse(
	dataTypeID uint8,
	signature uint64,
	server NodeID,
	tid TransferID,
	handler func(*Transfer),
) error {
	if handler == nil {
		return NewError(CodeInvalidParam, "nil response handler")
	}
	key := responseKey{dataTypeID: dataTypeID, server: server, tid: tid}
	if _, ok := d.responses[key]; ok {
		return Errorf(
			CodeBusy,
			"response listener already registered for service type %d, server %s, transfer id %d",
			dataTypeID,
			server,
			tid,
		)
	}
	d.responses[key] = newListener(signature, handler, d.maxTransferInterval)
	return nil
}

// CancelResponse removes a pending response listener
func (d *Dispatcher) CancelResponse(dataTypeID uint8, server NodeID, tid TransferID) {
	delete(d.responses, responseKey{dataTypeID: dataTypeID, server: server, tid: tid})
}

// HandleFrame feeds one received frame through reassembly and invokes the
// listeners of any transfer it completes. Frames not addressed to the
// local node and frames of unregistered types are ignored. local is the
// node's own id, zero when the node is passive.
func (d *Dispatcher) HandleFrame(rx can.RxFrame, local NodeID) error {
	if !rx.Extended || rx.RTR {
		return nil
	}
	if rx.Length == 0 || rx.Length > can.MaxDataLen {
		return NewError(CodeInvalidMarshalData, "frame without tail byte")
	}
	cid := ParseCANID(rx.ID)
	tail := ParseTail(rx.Data[rx.Length-1])
	payload := rx.Data[:rx.Length-1]

	switch cid.TransferType() {
	case TransferTypeMessage:
		return d.handleMessageFrame(cid, tail, payload, rx)
	case TransferTypeRequest:
		if cid.Destination != local || !local.IsUnicast() {
			return nil
		}
		l := d.servers[uint8(cid.DataTypeID)]
		if l == nil {
			return nil
		}
		tr, err := l.accept(cid, tail, payload, rx.Timestamp, rx.Iface, cid.DataTypeID)
		if tr != nil {
			l.handler(tr)
		}
		return err
	default:
		if cid.Destination != local || !local.IsUnicast() {
			return nil
		}
		key := responseKey{
			dataTypeID: uint8(cid.DataTypeID),
			server:     cid.Source,
			tid:        tail.TransferID,
		}
		l := d.responses[key]
		if l == nil {
			return nil
		}
		tr, err := l.accept(cid, tail, payload, rx.Timestamp, rx.Iface, cid.DataTypeID)
		if tr != nil {
			delete(d.responses, key)
			l.handler(tr)
		}
		return err
	}
}

// handleMessageFrame fans a message frame out to every matching
// subscription. Anonymous frames carry only two data type id bits, so
// they are offered to every subscription whose id matches those bits.
func (d *Dispatcher) handleMessageFrame(cid CANID, tail Tail, payload []byte, rx can.RxFrame) error {
	var errs []error
	if cid.Anonymous {
		for dtid, subs := range d.messages {
			if dtid&0x03 != cid.DataTypeID {
				continue
			}
			for _, sub := range subs {
				tr, err := sub.l.accept(cid, tail, payload, rx.Timestamp, rx.Iface, dtid)
				if err != nil {
					errs = append(errs, err)
				}
				if tr != nil {
					sub.l.handler(tr)
				}
			}
		}
		return errors.Join(errs...)
	}
	for _, sub := range d.messages[cid.DataTypeID] {
		tr, err := sub.l.accept(cid, tail, payload, rx.Timestamp, rx.Iface, cid.DataTypeID)
		if err != nil {
			errs = append(errs, err)
		}
		if tr != nil {
			sub.l.handler(tr)
		}
	}
	return errors.Join(errs...)
}
