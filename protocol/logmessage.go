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

package protocol

import (
	"github.com/EgoPingvina/gouavcan/dsdl"
)

// LogMessageTypeID is the data type id of the debug log broadcast
const LogMessageTypeID = 16383

// LogMessageType describes uavcan.protocol.debug.LogMessage
var LogMessageType = dsdl.MustMessageType(LogMessageTypeID, "uavcan.protocol.debug.LogMessage")

const (
	LogLevelDebug   uint8 = 0
	LogLevelInfo    uint8 = 1
	LogLevelWarning uint8 = 2
	LogLevelError   uint8 = 3
)

const (
	// MaxLogSourceLength bounds the source field of a log broadcast
	MaxLogSourceLength = 31

	// MaxLogTextLength bounds the text field of a log broadcast
	MaxLogTextLength = 90
)

// LogMessage is a broadcast debug log record
type LogMessage struct {
	dsdl.StructAsArray
	Level  uint8
	Source string
	Text   string
}

// Truncated returns a copy with source and text clamped to their wire
// limits
func (m LogMessage) Truncated() LogMessage {
	if len(m.Source) > MaxLogSourceLength {
		m.Source = m.Source[:MaxLogSourceLength]
	}
	if len(m.Text) > MaxLogTextLength {
		m.Text = m.Text[:MaxLogTextLength]
	}
	return m
}

// LogLevelString renders a log level for humans
func LogLevelString(level uint8) string {
	switch level {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}
