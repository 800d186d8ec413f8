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

package can

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Lawicel bit rate setup codes
var slcanBitrateCodes = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

const slcanBell = 0x07

// SLCAN drives a serial CAN adapter speaking the Lawicel SLCAN text
// protocol (CANable, CANtact, USBtin and similar). It exposes a single
// interface.
type SLCAN struct {
	mu      sync.Mutex
	port    serial.Port
	name    string
	line    bytes.Buffer
	pending []RxFrame
	closed  bool
}

// NewSLCAN opens the serial port, configures the requested CAN bit rate
// and opens the adapter's CAN channel.
func NewSLCAN(portName string, bitrate int) (*SLCAN, error) {
	code, ok := slcanBitrateCodes[bitrate]
	if !ok {
		return nil, fmt.Errorf("can: unsupported slcan bit rate %d", bitrate)
	}
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("can: open %s: %w", portName, err)
	}
	s := &SLCAN{port: port, name: portName}
	// Close a possibly open channel before reconfiguring
	for _, cmd := range [][]byte{
		[]byte("\rC\r"),
		{'S', code, '\r'},
		[]byte("O\r"),
	} {
		if _, err := port.Write(cmd); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("can: configure %s: %w", portName, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = port.ResetInputBuffer()
	return s, nil
}

func (s *SLCAN) Send(frame Frame, ifaceMask uint8, deadline time.Time) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if ifaceMask&1 == 0 {
		return ErrNoInterface
	}
	line := encodeSLCANFrame(frame)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.port.Write(line); err != nil {
		return fmt.Errorf("can: write %s: %w", s.name, err)
	}
	return nil
}

func (s *SLCAN) Receive(deadline time.Time) (RxFrame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scratch := make([]byte, 64)
	for {
		if len(s.pending) > 0 {
			f := s.pending[0]
			s.pending = s.pending[1:]
			return f, true, nil
		}
		if s.closed {
			return RxFrame{}, false, ErrClosed
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return RxFrame{}, false, nil
		}
		if err := s.port.SetReadTimeout(wait); err != nil {
			return RxFrame{}, false, fmt.Errorf("can: %s: %w", s.name, err)
		}
		n, err := s.port.Read(scratch)
		if err != nil {
			return RxFrame{}, false, fmt.Errorf("can: read %s: %w", s.name, err)
		}
		if n == 0 {
			// read timeout
			return RxFrame{}, false, nil
		}
		s.feed(scratch[:n])
	}
}

// feed consumes raw serial bytes, completing lines at CR and queueing any
// frames they carry. Adapter status responses and garbage are skipped.
func (s *SLCAN) feed(data []byte) {
	for _, b := range data {
		switch b {
		case '\r':
			if s.line.Len() > 0 {
				if f, ok := parseSLCANLine(s.line.Bytes()); ok {
					s.pending = append(s.pending, RxFrame{
						Frame:     f,
						Timestamp: time.Now(),
					})
				}
				s.line.Reset()
			}
		case slcanBell:
			// adapter rejected the last command
			s.line.Reset()
		default:
			s.line.WriteByte(b)
		}
	}
}

func (s *SLCAN) InterfaceCount() int {
	return 1
}

func (s *SLCAN) InterfaceName(i int) string {
	return s.name
}

func (s *SLCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.port.Write([]byte("C\r"))
	return s.port.Close()
}

func encodeSLCANFrame(f Frame) []byte {
	var buf bytes.Buffer
	switch {
	case f.Extended && f.RTR:
		fmt.Fprintf(&buf, "R%08X%d", f.ID, f.Length)
	case f.Extended:
		fmt.Fprintf(&buf, "T%08X%d", f.ID, f.Length)
	case f.RTR:
		fmt.Fprintf(&buf, "r%03X%d", f.ID, f.Length)
	default:
		fmt.Fprintf(&buf, "t%03X%d", f.ID, f.Length)
	}
	if !f.RTR {
		fmt.Fprintf(&buf, "%X", f.Payload())
	}
	buf.WriteByte('\r')
	return buf.Bytes()
}

// parseSLCANLine decodes a single CR-terminated adapter line. Lines that
// are not frames (status, command echoes) return ok false.
func parseSLCANLine(line []byte) (Frame, bool) {
	if len(line) < 2 {
		return Frame{}, false
	}
	var f Frame
	var idLen int
	switch line[0] {
	case 'T':
		f.Extended = true
		idLen = 8
	case 't':
		idLen = 3
	case 'R':
		f.Extended = true
		f.RTR = true
		idLen = 8
	case 'r':
		f.RTR = true
		idLen = 3
	default:
		return Frame{}, false
	}
	rest := line[1:]
	if len(rest) < idLen+1 {
		return Frame{}, false
	}
	id, err := strconv.ParseUint(string(rest[:idLen]), 16, 32)
	if err != nil {
		return Frame{}, false
	}
	f.ID = uint32(id)
	length, err := strconv.ParseUint(string(rest[idLen:idLen+1]), 10, 8)
	if err != nil || length > MaxDataLen {
		return Frame{}, false
	}
	f.Length = uint8(length)
	if f.RTR {
		return f, f.Validate() == nil
	}
	data := rest[idLen+1:]
	if len(data) < int(length)*2 {
		return Frame{}, false
	}
	for i := 0; i < int(length); i++ {
		b, err := strconv.ParseUint(string(data[i*2:i*2+2]), 16, 8)
		if err != nil {
			return Frame{}, false
		}
		f.Data[i] = byte(b)
	}
	return f, f.Validate() == nil
}
