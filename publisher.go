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
	"fmt"
	"time"

	"github.com/EgoPingvina/gouavcan/dsdl"
	"github.com/EgoPingvina/gouavcan/transport"
)

// DefaultTxTimeout bounds how long a transmission may wait for bus
// access before it is abandoned
const DefaultTxTimeout = 10 * time.Millisecond

// Publisher broadcasts messages of one data type
type Publisher struct {
	node      *Node
	typ       dsdl.Type
	priority  transport.Priority
	txTimeout time.Duration
}

// NewPublisher returns a publisher for the given message type
func (n *Node) NewPublisher(typ dsdl.Type) (*Publisher, error) {
	if !n.started {
		return nil, transport.Errorf(transport.CodeNotInited, "publisher init %s: node not started", typ)
	}
	if err := typ.Valid(); err != nil {
		return nil, transport.WrapError(transport.CodeInvalidParam, fmt.Sprintf("publisher init %s", typ), err)
	}
	if typ.Kind() != dsdl.KindMessage {
		return nil, transport.Errorf(transport.CodeInvalidParam, "publisher init %s: not a message type", typ)
	}
	return &Publisher{
		node:      n,
		typ:       typ,
		priority:  transport.PriorityDefault,
		txTimeout: DefaultTxTimeout,
	}, nil
}

// Type returns the published data type
func (p *Publisher) Type() dsdl.Type {
	return p.typ
}

// SetPriority changes the transfer priority of subsequent broadcasts
func (p *Publisher) SetPriority(prio transport.Priority) error {
	if !prio.Valid() {
		return transport.Errorf(transport.CodeInvalidParam, "priority %d out of range", prio)
	}
	p.priority = prio
	return nil
}

// SetTxTimeout changes the transmission deadline of subsequent broadcasts
func (p *Publisher) SetTxTimeout(d time.Duration) error {
	if d <= 0 {
		return transport.Errorf(transport.CodeInvalidParam, "tx timeout %s out of range", d)
	}
	p.txTimeout = d
	return nil
}

// Publish encodes the value and broadcasts it. A passive node may only
// publish values that fit a single frame.
func (p *Publisher) Publish(value interface{}) error {
	payload, err := dsdl.Marshal(value)
	if err != nil {
		return transport.WrapError(transport.CodeInvalidMarshalData, "message encoding", err)
	}
	deadline := p.node.clk.Now().Add(p.txTimeout)
	return p.node.sender.Publish(
		p.typ.ID(),
		p.typ.Signature(),
		p.priority,
		p.node.id,
		payload,
		deadline,
	)
}
