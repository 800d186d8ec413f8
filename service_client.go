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

const (
	// DefaultRequestTimeout is how long a service call waits for the
	// response unless configured otherwise
	DefaultRequestTimeout = 1 * time.Second

	// MinRequestTimeout and MaxRequestTimeout bound configurable request
	// timeouts; values outside are clamped
	MinRequestTimeout = 1 * time.Millisecond
	MaxRequestTimeout = 60 * time.Second
)

// ServiceCallResult reports the outcome of a service call. Successful is
// false when the call timed out; Payload then is nil.
type ServiceCallResult struct {
	Successful bool
	Server     transport.NodeID
	TransferID transport.TransferID
	Payload    []byte
	Timestamp  time.Time
}

// Decode unmarshals the response payload into the provided destination
func (r ServiceCallResult) Decode(v interface{}) error {
	if !r.Successful {
		return transport.NewError(transport.CodeLogic, "no response to decode")
	}
	if err := dsdl.Unmarshal(r.Payload, v); err != nil {
		return transport.WrapError(transport.CodeInvalidMarshalData, "response decoding", err)
	}
	return nil
}

// ResponseHandler runs on the spinning goroutine when a service call
// completes, whether with a response or a timeout. It must not call Spin
// or SpinOnce.
type ResponseHandler func(result ServiceCallResult)

// ServiceClient issues requests of one service type. At most one call per
// client may be in flight; starting a new call supersedes a pending one
// without notice.
type ServiceClient struct {
	node           *Node
	typ            dsdl.Type
	priority       transport.Priority
	requestTimeout time.Duration
	txTimeout      time.Duration
	pending        bool
	pendingServer  transport.NodeID
	pendingTID     transport.TransferID
	timeoutTimer   TimerID
	handler        ResponseHandler
}

// NewServiceClient returns a client for the given service type
func (n *Node) NewServiceClient(typ dsdl.Type) (*ServiceClient, error) {
	if !n.started {
		return nil, transport.Errorf(transport.CodeNotInited, "client init %s: node not started", typ)
	}
	if n.Passive() {
		return nil, transport.Errorf(transport.CodePassiveMode, "client init %s: passive node cannot call services", typ)
	}
	if err := typ.Valid(); err != nil {
		return nil, transport.WrapError(transport.CodeInvalidParam, fmt.Sprintf("client init %s", typ), err)
	}
	if typ.Kind() != dsdl.KindService {
		return nil, transport.Errorf(transport.CodeInvalidParam, "client init %s: not a service type", typ)
	}
	return &ServiceClient{
		node:           n,
		typ:            typ,
		priority:       transport.PriorityDefault,
		requestTimeout: DefaultRequestTimeout,
		txTimeout:      DefaultTxTimeout,
	}, nil
}

// Type returns the called data type
func (c *ServiceClient) Type() dsdl.Type {
	return c.typ
}

// SetRequestTimeout changes how long subsequent calls wait for a
// response. Values outside the supported range are clamped to it. The
// setting is sticky and applies until changed again.
func (c *ServiceClient) SetRequestTimeout(d time.Duration) {
	if d < MinRequestTimeout {
		d = MinRequestTimeout
	}
	if d > MaxRequestTimeout {
		d = MaxRequestTimeout
	}
	c.requestTimeout = d
}

// RequestTimeout returns the current request timeout
func (c *ServiceClient) RequestTimeout() time.Duration {
	return c.requestTimeout
}

// SetPriority changes the transfer priority of subsequent requests
func (c *ServiceClient) SetPriority(prio transport.Priority) error {
	if !prio.Valid() {
		return transport.Errorf(transport.CodeInvalidParam, "priority %d out of range", prio)
	}
	c.priority = prio
	return nil
}

// SetTxTimeout changes the transmission deadline of subsequent requests
func (c *ServiceClient) SetTxTimeout(d time.Duration) error {
	if d <= 0 {
		return transport.Errorf(transport.CodeInvalidParam, "tx timeout %s out of range", d)
	}
	c.txTimeout = d
	return nil
}

// Pending reports whether a call is waiting for its response
func (c *ServiceClient) Pending() bool {
	return c.pending
}

// Call encodes the request, sends it to the server and registers the
// handler for the outcome. The handler fires during a later Spin or
// SpinOnce, either with the response or with a timeout result. A pending
// call is superseded.
func (c *ServiceClient) Call(server transport.NodeID, request interface{}, handler ResponseHandler) error {
	if handler == nil {
		return transport.NewError(transport.CodeInvalidParam, "nil response handler")
	}
	if !server.IsUnicast() {
		return transport.Errorf(transport.CodeInvalidParam, "server id %s is not unicast", server)
	}
	if c.pending {
		c.cancelPending()
	}
	payload, err := dsdl.Marshal(request)
	if err != nil {
		return transport.WrapError(transport.CodeInvalidMarshalData, "request encoding", err)
	}
	deadline := c.node.clk.Now().Add(c.txTimeout)
	tid, err := c.node.sender.Request(
		uint8(c.typ.ID()),
		c.typ.Signature(),
		c.priority,
		c.node.id,
		server,
		payload,
		deadline,
	)
	if err != nil {
		return err
	}
	// Frames are only processed inside Spin, so registering after the
	// send cannot miss the response
	err = c.node.dispatcher.ExpectResponse(
		uint8(c.typ.ID()),
		c.typ.Signature(),
		server,
		tid,
		c.onResponse,
	)
	if err != nil {
		return err
	}
	timer, err := c.node.ScheduleOnce(c.requestTimeout, func(time.Time) {
		c.onTimeout()
	})
	if err != nil {
		c.node.dispatcher.CancelResponse(uint8(c.typ.ID()), server, tid)
		return err
	}
	c.pending = true
	c.pendingServer = server
	c.pendingTID = tid
	c.timeoutTimer = timer
	c.handler = handler
	return nil
}

// Cancel abandons a pending call without invoking its handler
func (c *ServiceClient) Cancel() {
	if c.pending {
		c.cancelPending()
	}
}

func (c *ServiceClient) cancelPending() {
	c.node.dispatcher.CancelResponse(uint8(c.typ.ID()), c.pendingServer, c.pendingTID)
	_ = c.node.CancelTimer(c.timeoutTimer)
	c.pending = false
	c.handler = nil
}

func (c *ServiceClient) onResponse(t *transport.Transfer) {
	_ = c.node.CancelTimer(c.timeoutTimer)
	handler := c.handler
	c.pending = false
	c.handler = nil
	handler(ServiceCallResult{
		Successful: true,
		Server:     t.Source,
		TransferID: t.TransferID,
		Payload:    t.Payload,
		Timestamp:  t.Timestamp,
	})
}

func (c *ServiceClient) onTimeout() {
	c.node.dispatcher.CancelResponse(uint8(c.typ.ID()), c.pendingServer, c.pendingTID)
	handler := c.handler
	server := c.pendingServer
	tid := c.pendingTID
	c.pending = false
	c.handler = nil
	c.node.logger.Debug("service call timed out",
		"type", c.typ.String(),
		"server", server.String(),
		"transfer_id", uint8(tid),
	)
	handler(ServiceCallResult{
		Successful: false,
		Server:     server,
		TransferID: tid,
	})
}
