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
	"errors"
	"testing"
	"time"

	"github.com/EgoPingvina/gouavcan/transport"
)

type fakeCaller struct {
	callErr    error
	calls      int
	lastServer transport.NodeID
	handler    ResponseHandler
	timeouts   []time.Duration
}

func (f *fakeCaller) Call(server transport.NodeID, request interface{}, handler ResponseHandler) error {
	f.calls++
	f.lastServer = server
	if f.callErr != nil {
		return f.callErr
	}
	f.handler = handler
	return nil
}

func (f *fakeCaller) SetRequestTimeout(d time.Duration) {
	f.timeouts = append(f.timeouts, d)
}

type fakePump struct {
	spins  int
	failAt int
	err    error
	onSpin func(spin int)
}

func (p *fakePump) Spin(time.Duration) error {
	p.spins++
	if p.onSpin != nil {
		p.onSpin(p.spins)
	}
	if p.failAt > 0 && p.spins >= p.failAt {
		return p.err
	}
	return nil
}

func newFakeBlockingClient() (*BlockingServiceClient, *fakeCaller, *fakePump) {
	caller := &fakeCaller{}
	pump := &fakePump{}
	client := &BlockingServiceClient{
		caller: caller,
		pump:   pump,
	}
	return client, caller, pump
}

func TestBlockingCallSuccess(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	response := []byte{0x82, 0x01, 0x02}
	pump.onSpin = func(spin int) {
		if spin == 3 {
			caller.handler(ServiceCallResult{
				Successful: true,
				Server:     42,
				Payload:    response,
			})
		}
	}
	if err := client.Call(42, struct{}{}); err != nil {
		t.Fatalf("unexpected error when calling: %s", err)
	}
	if !client.WasSuccessful() {
		t.Fatalf("expected a successful call")
	}
	if pump.spins != 3 {
		t.Fatalf("unexpected spin count: %d", pump.spins)
	}
	if caller.lastServer != 42 {
		t.Fatalf("unexpected server id: %s", caller.lastServer)
	}
	if string(client.Response()) != string(response) {
		t.Fatalf("unexpected response payload: % X", client.Response())
	}
	if client.Result().Server != 42 {
		t.Fatalf("unexpected result server: %s", client.Result().Server)
	}
}

func TestBlockingCallTimeoutResult(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	pump.onSpin = func(spin int) {
		if spin == 2 {
			caller.handler(ServiceCallResult{
				Successful: false,
				Server:     42,
			})
		}
	}
	if err := client.Call(42, struct{}{}); err != nil {
		t.Fatalf("unexpected error when calling: %s", err)
	}
	if client.WasSuccessful() {
		t.Fatalf("expected an unsuccessful call")
	}
	if client.Response() != nil {
		t.Fatalf("unexpected response payload on timeout")
	}
	var decoded struct{}
	if err := client.DecodeResponse(&decoded); transport.CodeOf(err) != transport.CodeLogic {
		t.Fatalf("expected logic error when decoding a timeout, got %v", err)
	}
}

func TestBlockingCallIssueFailure(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	caller.callErr = transport.NewError(transport.CodeInvalidParam, "bad request")
	err := client.Call(42, struct{}{})
	if transport.CodeOf(err) != transport.CodeInvalidParam {
		t.Fatalf("expected the issue error, got %v", err)
	}
	// The pump must never run when the request was not sent
	if pump.spins != 0 {
		t.Fatalf("pump advanced %d times after an issue failure", pump.spins)
	}
	if client.WasSuccessful() {
		t.Fatalf("failed call reported successful")
	}
}

func TestBlockingCallPumpFailure(t *testing.T) {
	client, _, pump := newFakeBlockingClient()
	cause := errors.New("bus off")
	pump.failAt = 4
	pump.err = transport.WrapError(transport.CodeDriver, "frame reception", cause)
	err := client.Call(42, struct{}{})
	if transport.CodeOf(err) != transport.CodeDriver {
		t.Fatalf("expected the pump error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("pump error lost its cause: %v", err)
	}
	if pump.spins != 4 {
		t.Fatalf("unexpected spin count: %d", pump.spins)
	}
	if client.WasSuccessful() {
		t.Fatalf("aborted call reported successful")
	}
}

func TestBlockingCallStaleCallbackIgnored(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	pump.failAt = 1
	pump.err = transport.NewError(transport.CodeDriver, "transient fault")
	if err := client.Call(42, struct{}{}); err == nil {
		t.Fatalf("expected a pump error, got none")
	}
	stale := caller.handler
	// Second call succeeds immediately
	pump.failAt = 0
	response := []byte{0x01}
	pump.onSpin = func(spin int) {
		if spin == 2 {
			caller.handler(ServiceCallResult{Successful: true, Server: 42, Payload: response})
		}
	}
	if err := client.Call(42, struct{}{}); err != nil {
		t.Fatalf("unexpected error when calling again: %s", err)
	}
	// A late delivery for the aborted call must not disturb the result
	stale(ServiceCallResult{Successful: false, Server: 7})
	if !client.WasSuccessful() {
		t.Fatalf("stale callback overwrote the result")
	}
	if client.Result().Server != 42 {
		t.Fatalf("unexpected result server: %s", client.Result().Server)
	}
}

func TestBlockingCallStickyTimeout(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	pump.onSpin = func(int) {
		caller.handler(ServiceCallResult{Successful: true, Server: 42})
	}
	if err := client.CallWithTimeout(42, struct{}{}, 5*time.Second); err != nil {
		t.Fatalf("unexpected error when calling: %s", err)
	}
	if err := client.Call(42, struct{}{}); err != nil {
		t.Fatalf("unexpected error when calling again: %s", err)
	}
	// Only the explicit timeout call touches the setting
	if len(caller.timeouts) != 1 || caller.timeouts[0] != 5*time.Second {
		t.Fatalf("unexpected timeout updates: %v", caller.timeouts)
	}
	client.SetRequestTimeout(250 * time.Millisecond)
	if len(caller.timeouts) != 2 || caller.timeouts[1] != 250*time.Millisecond {
		t.Fatalf("unexpected timeout updates: %v", caller.timeouts)
	}
}

func TestBlockingCallSequential(t *testing.T) {
	client, caller, pump := newFakeBlockingClient()
	payloads := [][]byte{{0xAA}, {0xBB}}
	call := 0
	pump.onSpin = func(int) {
		caller.handler(ServiceCallResult{Successful: true, Server: 42, Payload: payloads[call]})
	}
	for i := range payloads {
		call = i
		if err := client.Call(42, struct{}{}); err != nil {
			t.Fatalf("unexpected error when calling: %s", err)
		}
		if !client.WasSuccessful() {
			t.Fatalf("call %d not successful", i)
		}
		if string(client.Response()) != string(payloads[i]) {
			t.Fatalf("unexpected payload for call %d: % X", i, client.Response())
		}
	}
	if caller.calls != 2 {
		t.Fatalf("unexpected call count: %d", caller.calls)
	}
}

func TestBlockingClientBeforeAnyCall(t *testing.T) {
	client, _, _ := newFakeBlockingClient()
	if client.WasSuccessful() {
		t.Fatalf("fresh client reported a successful call")
	}
	if client.Response() != nil {
		t.Fatalf("fresh client returned a response")
	}
	var decoded struct{}
	if err := client.DecodeResponse(&decoded); transport.CodeOf(err) != transport.CodeLogic {
		t.Fatalf("expected logic error, got %v", err)
	}
}
