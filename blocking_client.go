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
	"time"

	"github.com/EgoPingvina/gouavcan/dsdl"
	"github.com/EgoPingvina/gouavcan/transport"
)

// blockingSpinQuantum is how long each pump round inside a blocking call
// may wait for frames. Short enough that timers and unrelated listeners
// stay responsive, long enough not to busy-poll the driver.
const blockingSpinQuantum = 2 * time.Millisecond

type serviceCaller interface {
	Call(server transport.NodeID, request interface{}, handler ResponseHandler) error
	SetRequestTimeout(d time.Duration)
}

type framePump interface {
	Spin(d time.Duration) error
}

// BlockingServiceClient wraps a ServiceClient so that a call runs the
// node until its outcome is known. While a call blocks, the node keeps
// spinning: status broadcasts go out, timers fire and unrelated listeners
// receive their transfers.
//
// Like the node itself, a blocking client is confined to the spinning
// goroutine. Blocking calls cannot be made from inside a callback.
type BlockingServiceClient struct {
	caller     serviceCaller
	pump       framePump
	generation uint64
	waiting    bool
	hasResult  bool
	result     ServiceCallResult
}

// NewBlockingServiceClient returns a blocking client for the given
// service type
func (n *Node) NewBlockingServiceClient(typ dsdl.Type) (*BlockingServiceClient, error) {
	client, err := n.NewServiceClient(typ)
	if err != nil {
		return nil, err
	}
	return &BlockingServiceClient{
		caller: client,
		pump:   n,
	}, nil
}

// Call sends the request and spins the node until the response arrives or
// the request times out. A nil return means the call ran to completion;
// whether a response arrived is reported by WasSuccessful. An error means
// the call could not be issued or the node failed while waiting.
func (b *BlockingServiceClient) Call(server transport.NodeID, request interface{}) error {
	generation := b.prepare()
	err := b.caller.Call(server, request, func(result ServiceCallResult) {
		b.complete(generation, result)
	})
	if err != nil {
		b.waiting = false
		return err
	}
	for b.waiting {
		if err := b.pump.Spin(blockingSpinQuantum); err != nil {
			b.waiting = false
			return err
		}
	}
	return nil
}

// CallWithTimeout is Call with the request timeout set first. The timeout
// is sticky: it stays in effect for subsequent calls until changed.
func (b *BlockingServiceClient) CallWithTimeout(
	server transport.NodeID,
	request interface{},
	timeout time.Duration,
) error {
	b.caller.SetRequestTimeout(timeout)
	return b.Call(server, request)
}

// SetRequestTimeout changes how long subsequent calls wait for a
// response. Values outside the supported range are clamped to it.
func (b *BlockingServiceClient) SetRequestTimeout(d time.Duration) {
	b.caller.SetRequestTimeout(d)
}

func (b *BlockingServiceClient) prepare() uint64 {
	b.generation++
	b.waiting = true
	b.hasResult = false
	b.result = ServiceCallResult{}
	return b.generation
}

func (b *BlockingServiceClient) complete(generation uint64, result ServiceCallResult) {
	// A callback from a superseded call must not touch the current one
	if generation != b.generation {
		return
	}
	b.waiting = false
	b.hasResult = true
	b.result = result
}

// WasSuccessful reports whether the most recent call received a response
func (b *BlockingServiceClient) WasSuccessful() bool {
	return b.hasResult && b.result.Successful
}

// Result returns the outcome of the most recent call
func (b *BlockingServiceClient) Result() ServiceCallResult {
	return b.result
}

// Response returns the raw response payload of the most recent call, nil
// when there was none
func (b *BlockingServiceClient) Response() []byte {
	return b.result.Payload
}

// DecodeResponse unmarshals the most recent response into the provided
// destination
func (b *BlockingServiceClient) DecodeResponse(v interface{}) error {
	if !b.hasResult {
		return transport.NewError(transport.CodeLogic, "no completed call")
	}
	return b.result.Decode(v)
}
