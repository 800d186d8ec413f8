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
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNewExtendedFrame(t *testing.T) {
	f := NewExtendedFrame(0x1234567, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if !f.Extended {
		t.Error("expected extended frame")
	}
	if f.ID != 0x1234567 {
		t.Errorf("unexpected ID: %#x", f.ID)
	}
	if f.Length != 4 {
		t.Errorf("unexpected length: %d", f.Length)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("unexpected error when validating frame: %s", err)
	}
}

func TestNewExtendedFrameTruncates(t *testing.T) {
	f := NewExtendedFrame(1, make([]byte, 12))
	if f.Length != MaxDataLen {
		t.Errorf("expected length %d, got %d", MaxDataLen, f.Length)
	}
}

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name      string
		frame     Frame
		expectErr bool
	}{
		{
			name:  "valid standard frame",
			frame: Frame{ID: 0x7FF, Length: 8},
		},
		{
			name:  "valid extended frame",
			frame: Frame{ID: MaxExtendedID, Extended: true, Length: 0},
		},
		{
			name:      "standard identifier out of range",
			frame:     Frame{ID: 0x800},
			expectErr: true,
		},
		{
			name:      "extended identifier out of range",
			frame:     Frame{ID: MaxExtendedID + 1, Extended: true},
			expectErr: true,
		},
		{
			name:      "length out of range",
			frame:     Frame{ID: 1, Length: 9},
			expectErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.frame.Validate()
			if tc.expectErr && err == nil {
				t.Error("expected error, got none")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("unexpected error: %s", err)
			}
		})
	}
}

func TestFrameString(t *testing.T) {
	f := NewExtendedFrame(0xABC, []byte{0x01, 0x02})
	want := "00000ABC [2] 01 02"
	if got := f.String(); got != want {
		t.Errorf("unexpected string: got %q, want %q", got, want)
	}
}

func TestFrameColorString(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()
	f := NewExtendedFrame(0xABC, []byte{0x4F, 0x4B, 0x00})
	got := f.ColorString()
	for _, column := range []string{"00000ABC", "4F 4B 00", "01001111 01001011 00000000", "OK."} {
		if !strings.Contains(got, column) {
			t.Errorf("rendering %q missing %q", got, column)
		}
	}
}
