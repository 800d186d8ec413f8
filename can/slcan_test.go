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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSLCANLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expectOk bool
		expected Frame
	}{
		{
			name:     "extended data frame",
			line:     "T1FFFFFFF2AABB",
			expectOk: true,
			expected: Frame{
				ID:       0x1FFFFFFF,
				Extended: true,
				Length:   2,
				Data:     [MaxDataLen]byte{0xAA, 0xBB},
			},
		},
		{
			name:     "standard data frame",
			line:     "t1238AABBCCDD11223344",
			expectOk: true,
			expected: Frame{
				ID:     0x123,
				Length: 8,
				Data: [MaxDataLen]byte{
					0xAA, 0xBB, 0xCC, 0xDD, 0x11, 0x22, 0x33, 0x44,
				},
			},
		},
		{
			name:     "extended remote frame",
			line:     "R0000F00D0",
			expectOk: true,
			expected: Frame{
				ID:       0xF00D,
				Extended: true,
				RTR:      true,
			},
		},
		{
			name:     "lowercase hex accepted",
			line:     "T00000abc1ff",
			expectOk: true,
			expected: Frame{
				ID:       0xABC,
				Extended: true,
				Length:   1,
				Data:     [MaxDataLen]byte{0xFF},
			},
		},
		{
			name: "status response ignored",
			line: "F00",
		},
		{
			name: "command echo ignored",
			line: "z",
		},
		{
			name: "truncated data",
			line: "T1FFFFFFF2AA",
		},
		{
			name: "bad length digit",
			line: "T1FFFFFFF9AABBCCDD11223344AA",
		},
		{
			name: "empty line",
			line: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, ok := parseSLCANLine([]byte(tc.line))
			if ok != tc.expectOk {
				t.Fatalf("unexpected parse result: got ok=%v, want %v", ok, tc.expectOk)
			}
			if ok && f != tc.expected {
				t.Errorf("frame mismatch: got %+v, want %+v", f, tc.expected)
			}
		})
	}
}

func TestEncodeSLCANFrame(t *testing.T) {
	f := NewExtendedFrame(0x18EA00FD, []byte{0x01, 0x02, 0x03})
	require.Equal(t, "T18EA00FD3010203\r", string(encodeSLCANFrame(f)))

	std := Frame{ID: 0x7E0, Length: 1, Data: [MaxDataLen]byte{0x10}}
	require.Equal(t, "t7E0110\r", string(encodeSLCANFrame(std)))
}

func TestSLCANRoundTrip(t *testing.T) {
	f := NewExtendedFrame(0x1234ABCD, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	line := encodeSLCANFrame(f)
	// strip trailing CR, the reader consumes it as a terminator
	parsed, ok := parseSLCANLine(line[:len(line)-1])
	require.True(t, ok)
	require.Equal(t, f, parsed)
}

func TestSLCANFeedSplitAcrossReads(t *testing.T) {
	s := &SLCAN{}
	s.feed([]byte("T000001"))
	if len(s.pending) != 0 {
		t.Fatal("incomplete line must not produce a frame")
	}
	s.feed([]byte("4218EAD\rzz"))
	if len(s.pending) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(s.pending))
	}
	got := s.pending[0].Frame
	if got.ID != 0x142 || got.Length != 1 || got.Data[0] != 0x8E {
		t.Errorf("unexpected frame: %+v", got)
	}
}
