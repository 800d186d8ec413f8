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
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	// MaxDataLen is the payload capacity of a classic CAN 2.0 frame
	MaxDataLen = 8

	// MaxStandardID is the largest valid 11-bit identifier
	MaxStandardID = 0x7FF

	// MaxExtendedID is the largest valid 29-bit identifier
	MaxExtendedID = 0x1FFFFFFF
)

// Frame is a classic CAN 2.0 frame
type Frame struct {
	// ID is the CAN identifier, 11-bit unless Extended is set
	ID uint32
	// Extended selects the 29-bit identifier format
	Extended bool
	// RTR marks a remote transmission request
	RTR bool
	// Length is the number of valid bytes in Data
	Length uint8
	// Data is the frame payload
	Data [MaxDataLen]byte
}

// NewExtendedFrame returns a frame with a 29-bit identifier carrying the
// given payload. Payloads longer than MaxDataLen are truncated.
func NewExtendedFrame(id uint32, data []byte) Frame {
	f := Frame{
		ID:       id & MaxExtendedID,
		Extended: true,
	}
	n := copy(f.Data[:], data)
	f.Length = uint8(n) // #nosec G115
	return f
}

// Payload returns the valid portion of the frame data
func (f Frame) Payload() []byte {
	if f.Length > MaxDataLen {
		return f.Data[:]
	}
	return f.Data[:f.Length]
}

// Validate checks identifier range and payload length
func (f Frame) Validate() error {
	if f.Length > MaxDataLen {
		return fmt.Errorf("can: frame length %d exceeds %d", f.Length, MaxDataLen)
	}
	maxID := uint32(MaxStandardID)
	if f.Extended {
		maxID = MaxExtendedID
	}
	if f.ID > maxID {
		return fmt.Errorf("can: identifier %#x out of range", f.ID)
	}
	return nil
}

func (f Frame) String() string {
	marker := ""
	if f.RTR {
		marker = " R"
	}
	if f.Extended {
		return fmt.Sprintf("%08X [%d] % X%s", f.ID, f.Length, f.Payload(), marker)
	}
	return fmt.Sprintf("%03X [%d] % X%s", f.ID, f.Length, f.Payload(), marker)
}

var (
	idColor    = color.New(color.FgGreen).SprintfFunc()
	binColor   = color.New(color.FgRed).SprintfFunc()
	asciiColor = color.New(color.FgHiBlue).SprintfFunc()
)

// ColorString renders the frame for a terminal with the identifier, binary
// view and ASCII view colorized. Use String for log output.
func (f Frame) ColorString() string {
	var out strings.Builder
	if f.Extended {
		out.WriteString(idColor("%08X", f.ID))
	} else {
		out.WriteString(idColor("%03X", f.ID))
	}
	out.WriteString(" || ")

	var hexView strings.Builder
	for i, b := range f.Payload() {
		if i > 0 {
			hexView.WriteByte(' ')
		}
		fmt.Fprintf(&hexView, "%02X", b)
	}
	fmt.Fprintf(&out, "%-23s", hexView.String())
	out.WriteString(" || ")

	var binView strings.Builder
	for i, b := range f.Payload() {
		if i > 0 {
			binView.WriteByte(' ')
		}
		fmt.Fprintf(&binView, "%08b", b)
	}
	out.WriteString(binColor("%-71s", binView.String()))
	out.WriteString(" || ")

	ascii := make([]byte, 0, MaxDataLen)
	for _, b := range f.Payload() {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		ascii = append(ascii, b)
	}
	out.WriteString(asciiColor("%-8s", ascii))
	return out.String()
}

// RxFrame is a received frame annotated with its arrival time and the
// index of the interface it arrived on
type RxFrame struct {
	Frame
	Timestamp time.Time
	Iface     int
}
