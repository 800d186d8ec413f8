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

// ServiceHandler produces the response to an incoming request. The
// returned value is encoded and sent back to the caller; returning nil
// suppresses the response. A returned error is logged and no response is
// sent. The handler must not call Spin or SpinOnce.
type ServiceHandler func(req *transport.Transfer) (interface{}, error)

// ServiceServer answers requests of one service type
type ServiceServer struct {
	node      *Node
	typ       dsdl.Type
	handler   ServiceHandler
	txTimeout time.Duration
	closed    bool
}

// RegisterServiceServer registers the handler for incoming requests of
// the given service type. Only one server per type may exist on a node.
func (n *Node) RegisterServiceServer(typ dsdl.Type, handler ServiceHandler) (*ServiceServer, error) {
	if !n.started {
		return nil, transport.Errorf(transport.CodeNotInited, "server init %s: node not started", typ)
	}
	if n.Passive() {
		return nil, transport.Errorf(transport.CodePassiveMode, "server init %s: passive node cannot serve", typ)
	}
	if err := typ.Valid(); err != nil {
		return nil, transport.WrapError(transport.CodeInvalidParam, fmt.Sprintf("server init %s", typ), err)
	}
	if typ.Kind() != dsdl.KindService {
		return nil, transport.Errorf(transport.CodeInvalidParam, "server init %s: not a service type", typ)
	}
	if handler == nil {
		return nil, transport.Errorf(transport.CodeInvalidParam, "server init %s: nil service handler", typ)
	}
	s := &ServiceServer{
		node:      n,
		typ:       typ,
		handler:   handler,
		txTimeout: DefaultTxTimeout,
	}
	if err := n.dispatcher.RegisterServer(uint8(typ.ID()), typ.Signature(), s.handleRequest); err != nil {
		return nil, err
	}
	return s, nil
}

// Type returns the served data type
func (s *ServiceServer) Type() dsdl.Type {
	return s.typ
}

// SetTxTimeout changes the transmission deadline of subsequent responses
func (s *ServiceServer) SetTxTimeout(d time.Duration) error {
	if d <= 0 {
		return transport.Errorf(transport.CodeInvalidParam, "tx timeout %s out of range", d)
	}
	s.txTimeout = d
	return nil
}

// Close unregisters the server. Closing twice is a no-op.
func (s *ServiceServer) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.node.dispatcher.UnregisterServer(uint8(s.typ.ID()))
}

func (s *ServiceServer) handleRequest(req *transport.Transfer) {
	response, err := s.handler(req)
	if err != nil {
		s.node.logger.Debug("service handler failed",
			"type", s.typ.String(),
			"source", req.Source.String(),
			"error", err,
		)
		return
	}
	if response == nil {
		return
	}
	payload, err := dsdl.Marshal(response)
	if err != nil {
		s.node.logger.Debug("service response encoding failed",
			"type", s.typ.String(),
			"error", err,
		)
		return
	}
	deadline := s.node.clk.Now().Add(s.txTimeout)
	// Respond at the priority the caller chose
	err = s.node.sender.Respond(
		uint8(s.typ.ID()),
		s.typ.Signature(),
		req.Priority,
		s.node.id,
		req.Source,
		req.TransferID,
		payload,
		deadline,
	)
	if err != nil {
		s.node.logger.Debug("service response transmission failed",
			"type", s.typ.String(),
			"destination", req.Source.String(),
			"error", err,
		)
	}
}
