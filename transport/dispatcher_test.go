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
	"bytes"
	"testing"
	"time"

	"github.com/EgoPingvina/gouavcan/can"
)

// feedFrames pushes captured frames through the dispatcher as if they
// arrived from the bus
func feedFrames(t *testing.T, d *Dispatcher, frames []can.Frame, local NodeID, ts time.Time) {
	t.Helper()
	for _, f := range frames {
		rx := can.RxFrame{Frame: f, Timestamp: ts}
		if err := d.HandleFrame(rx, local); err != nil {
			t.Fatalf("unexpected error when handling frame: %s", err)
		}
	}
}

func TestDispatchSingleFrameMessage(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	var got *Transfer
	sub, err := d.SubscribeMessage(341, testSignature, func(tr *Transfer) { got = tr })
	if err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}
	defer sub.Close()

	payload := []byte{1, 2, 3}
	if err := s.Publish(341, testSignature, PriorityDefault, 10, payload, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	feedFrames(t, d, drv.frames, 20, time.Unix(1700000000, 0))

	if got == nil {
		t.Fatal("expected a delivered transfer")
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("unexpected payload: % X", got.Payload)
	}
	if got.Type != TransferTypeMessage || got.Source != 10 || got.DataTypeID != 341 {
		t.Errorf("unexpected transfer meta: %+v", got)
	}
}

func TestDispatchMultiFrameMessage(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	var got *Transfer
	if _, err := d.SubscribeMessage(341, testSignature, func(tr *Transfer) { got = tr }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := s.Publish(341, testSignature, PriorityDefault, 10, payload, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	feedFrames(t, d, drv.frames, 20, time.Unix(1700000000, 0))

	if got == nil {
		t.Fatal("expected a delivered transfer")
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("reassembled payload differs from original")
	}
}

func TestDispatchRejectsCorruptedTransfer(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	delivered := false
	if _, err := d.SubscribeMessage(341, testSignature, func(*Transfer) { delivered = true }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	if err := s.Publish(341, testSignature, PriorityDefault, 10, make([]byte, 20), time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	// flip a payload bit in the middle frame
	drv.frames[1].Data[0] ^= 0x01

	ts := time.Unix(1700000000, 0)
	var lastErr error
	for _, f := range drv.frames {
		lastErr = d.HandleFrame(can.RxFrame{Frame: f, Timestamp: ts}, 20)
	}
	if lastErr == nil {
		t.Fatal("expected crc mismatch error")
	}
	if CodeOf(lastErr) != CodeInvalidMarshalData {
		t.Errorf("unexpected error code: %v", lastErr)
	}
	if delivered {
		t.Error("corrupted transfer must not be delivered")
	}
}

func TestDispatchSignatureMismatch(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	delivered := false
	if _, err := d.SubscribeMessage(341, 0xBADBADBADBADBADB, func(*Transfer) { delivered = true }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	if err := s.Publish(341, testSignature, PriorityDefault, 10, make([]byte, 20), time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	ts := time.Unix(1700000000, 0)
	var lastErr error
	for _, f := range drv.frames {
		lastErr = d.HandleFrame(can.RxFrame{Frame: f, Timestamp: ts}, 20)
	}
	if lastErr == nil {
		t.Fatal("expected crc mismatch from signature disagreement")
	}
	if delivered {
		t.Error("transfer with wrong signature must not be delivered")
	}
}

func TestDispatchDuplicateSuppression(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	count := 0
	if _, err := d.SubscribeMessage(341, testSignature, func(*Transfer) { count++ }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	if err := s.Publish(341, testSignature, PriorityDefault, 10, []byte{1}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	ts := time.Unix(1700000000, 0)
	// the same transfer arriving twice, e.g. via a redundant interface
	feedFrames(t, d, drv.frames, 20, ts)
	feedFrames(t, d, drv.frames, 20, ts.Add(time.Millisecond))
	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}

	// long after the dedup window the same transfer id is fresh again
	feedFrames(t, d, drv.frames, 20, ts.Add(DefaultMaxTransferInterval+time.Second))
	if count != 2 {
		t.Errorf("expected redelivery after window, got %d", count)
	}
}

func TestDispatchServiceRouting(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	var got *Transfer
	if err := d.RegisterServer(1, testSignature, func(tr *Transfer) { got = tr }); err != nil {
		t.Fatalf("unexpected error when registering server: %s", err)
	}

	if _, err := s.Request(1, testSignature, PriorityDefault, 42, 127, []byte{7}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when sending request: %s", err)
	}
	ts := time.Unix(1700000000, 0)

	// addressed to node 127, so node 99 must ignore it
	feedFrames(t, d, drv.frames, 99, ts)
	if got != nil {
		t.Fatal("request for another node must not be delivered")
	}
	feedFrames(t, d, drv.frames, 127, ts)
	if got == nil {
		t.Fatal("expected delivered request")
	}
	if got.Type != TransferTypeRequest || got.Source != 42 || got.Destination != 127 {
		t.Errorf("unexpected transfer meta: %+v", got)
	}
}

func TestDispatchResponseOneShot(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	count := 0
	if err := d.ExpectResponse(1, testSignature, 127, 5, func(*Transfer) { count++ }); err != nil {
		t.Fatalf("unexpected error when expecting response: %s", err)
	}

	if err := s.Respond(1, testSignature, PriorityDefault, 127, 42, 5, []byte{1}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when responding: %s", err)
	}
	ts := time.Unix(1700000000, 0)
	feedFrames(t, d, drv.frames, 42, ts)
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	// the listener is gone, a second copy is ignored
	feedFrames(t, d, drv.frames, 42, ts.Add(time.Millisecond))
	if count != 1 {
		t.Errorf("one-shot listener fired twice")
	}
}

func TestDispatchResponseTransferIDFilter(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	count := 0
	if err := d.ExpectResponse(1, testSignature, 127, 9, func(*Transfer) { count++ }); err != nil {
		t.Fatalf("unexpected error when expecting response: %s", err)
	}
	// response carrying a different transfer id, e.g. to a stale request
	if err := s.Respond(1, testSignature, PriorityDefault, 127, 42, 8, []byte{1}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when responding: %s", err)
	}
	feedFrames(t, d, drv.frames, 42, time.Unix(1700000000, 0))
	if count != 0 {
		t.Error("response with foreign transfer id must not be delivered")
	}
}

func TestDispatchAnonymousMessage(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	s.AllowAnonymousTransfers()
	d := NewDispatcher()

	var got *Transfer
	if _, err := d.SubscribeMessage(1, testSignature, func(tr *Transfer) { got = tr }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}
	other := 0
	// type 4 has low id bits 00, so the frame below must not reach it
	if _, err := d.SubscribeMessage(4, testSignature, func(*Transfer) { other++ }); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	if err := s.Publish(1, testSignature, PriorityLowest, NodeIDBroadcast, []byte{0xAA}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing anonymously: %s", err)
	}
	feedFrames(t, d, drv.frames, 20, time.Unix(1700000000, 0))

	if got == nil {
		t.Fatal("expected anonymous delivery to matching subscription")
	}
	if got.Source != NodeIDBroadcast {
		t.Errorf("unexpected source: %s", got.Source)
	}
	if got.DataTypeID != 1 {
		t.Errorf("unexpected data type id: %d", got.DataTypeID)
	}
	if other != 0 {
		t.Error("anonymous frame delivered to non-matching subscription")
	}
}

func TestSubscriptionClose(t *testing.T) {
	drv := &captureDriver{}
	s := NewSender(drv, newTestClock())
	d := NewDispatcher()

	count := 0
	sub, err := d.SubscribeMessage(341, testSignature, func(*Transfer) { count++ })
	if err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}
	if err := s.Publish(341, testSignature, PriorityDefault, 10, []byte{1}, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	sub.Close()
	sub.Close() // closing twice is fine
	feedFrames(t, d, drv.frames, 20, time.Unix(1700000000, 0))
	if count != 0 {
		t.Error("closed subscription must not receive transfers")
	}
}

func TestRegisterServerDuplicate(t *testing.T) {
	d := NewDispatcher()
	h := func(*Transfer) {}
	if err := d.RegisterServer(1, testSignature, h); err != nil {
		t.Fatalf("unexpected error when registering server: %s", err)
	}
	if err := d.RegisterServer(1, testSignature, h); CodeOf(err) != CodeBusy {
		t.Errorf("expected busy error for duplicate server, got %v", err)
	}
	d.UnregisterServer(1)
	if err := d.RegisterServer(1, testSignature, h); err != nil {
		t.Errorf("unexpected error when re-registering server: %s", err)
	}
}

func TestExpectResponseDuplicate(t *testing.T) {
	d := NewDispatcher()
	h := func(*Transfer) {}
	if err := d.ExpectResponse(1, testSignature, 127, 3, h); err != nil {
		t.Fatalf("unexpected error when expecting response: %s", err)
	}
	if err := d.ExpectResponse(1, testSignature, 127, 3, h); CodeOf(err) != CodeBusy {
		t.Errorf("expected busy error for duplicate listener, got %v", err)
	}
	d.CancelResponse(1, 127, 3)
	if err := d.ExpectResponse(1, testSignature, 127, 3, h); err != nil {
		t.Errorf("unexpected error when re-registering listener: %s", err)
	}
}

func TestHandleFrameIgnoresForeignTraffic(t *testing.T) {
	d := NewDispatcher()
	ts := time.Unix(1700000000, 0)

	// standard-id frame, not protocol traffic
	std := can.RxFrame{Frame: can.Frame{ID: 0x123, Length: 2, Data: [8]byte{1, 0xC0}}, Timestamp: ts}
	if err := d.HandleFrame(std, 20); err != nil {
		t.Errorf("unexpected error for standard frame: %s", err)
	}
	// empty frame cannot carry a tail byte
	empty := can.RxFrame{Frame: can.NewExtendedFrame(MessageCANID(16, 341, 10), nil), Timestamp: ts}
	if err := d.HandleFrame(empty, 20); CodeOf(err) != CodeInvalidMarshalData {
		t.Errorf("expected invalid marshal data error, got %v", err)
	}
}

func TestInterleavedSourcesReassembleIndependently(t *testing.T) {
	drvA := &captureDriver{}
	drvB := &captureDriver{}
	clk := newTestClock()
	sA := NewSender(drvA, clk)
	sB := NewSender(drvB, clk)
	d := NewDispatcher()

	var payloads [][]byte
	if _, err := d.SubscribeMessage(341, testSignature, func(tr *Transfer) {
		payloads = append(payloads, tr.Payload)
	}); err != nil {
		t.Fatalf("unexpected error when subscribing: %s", err)
	}

	pa := bytes.Repeat([]byte{0xA1}, 20)
	pb := bytes.Repeat([]byte{0xB2}, 20)
	if err := sA.Publish(341, testSignature, PriorityDefault, 10, pa, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}
	if err := sB.Publish(341, testSignature, PriorityDefault, 11, pb, time.Time{}); err != nil {
		t.Fatalf("unexpected error when publishing: %s", err)
	}

	// interleave the two nodes' frames
	ts := time.Unix(1700000000, 0)
	for i := 0; i < len(drvA.frames) || i < len(drvB.frames); i++ {
		if i < len(drvA.frames) {
			feedFrames(t, d, drvA.frames[i:i+1], 20, ts)
		}
		if i < len(drvB.frames) {
			feedFrames(t, d, drvB.frames[i:i+1], 20, ts)
		}
	}

	if len(payloads) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(payloads))
	}
	if !bytes.Equal(payloads[0], pa) || !bytes.Equal(payloads[1], pb) {
		t.Error("interleaved transfers were not reassembled independently")
	}
}
