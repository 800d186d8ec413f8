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

	"github.com/EgoPingvina/gouavcan/dsdl"
	"github.com/EgoPingvina/gouavcan/transport"
)

// MessageHandler runs on the spinning goroutine for every received
// broadcast of a subscribed type. The transfer's payload is only valid
// for the duration of the call.
type MessageHandler func(transfer *transport.Transfer)

// Subscriber is a registered broadcast listener
type Subscriber struct {
	node *Node
	typ  dsdl.Type
	sub  *transport.Subscription
}

// Subscribe registers a handler for broadcasts of the given message type.
// Multiple subscribers per type are allowed.
func (n *Node) Subscribe(typ dsdl.Type, handler MessageHandler) (*Subscriber, error) {
	if !n.started {
		return nil, transport.Errorf(transport.CodeNotInited, "subscriber init %s: node not started", typ)
	}
	if err := typ.Valid(); err != nil {
		return nil, transport.WrapError(transport.CodeInvalidParam, fmt.Sprintf("subscriber init %s", typ), err)
	}
	if typ.Kind() != dsdl.KindMessage {
		return nil, transport.Errorf(transport.CodeInvalidParam, "subscriber init %s: not a message type", typ)
	}
	sub, err := n.dispatcher.SubscribeMessage(typ.ID(), typ.Signature(), handler)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		node: n,
		typ:  typ,
		sub:  sub,
	}, nil
}

// Type returns the subscribed data type
func (s *Subscriber) Type() dsdl.Type {
	return s.typ
}

// Close removes the subscription. Closing twice is a no-op.
func (s *Subscriber) Close() {
	s.sub.Close()
}
