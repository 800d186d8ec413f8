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

import "encoding/binary"

// TransferCRC is the CRC-16-CCITT-FALSE protecting multi-frame transfers.
// It is seeded with the data type signature so that a transfer decoded
// against the wrong type revision fails the check.
type TransferCRC uint16

const transferCRCInitial TransferCRC = 0xFFFF

// NewTransferCRC returns the CRC seeded with the data type signature,
// least significant byte first
func NewTransferCRC(signature uint64) TransferCRC {
	var sig [8]byte
	binary.LittleEndian.PutUint64(sig[:], signature)
	return transferCRCInitial.Add(sig[:])
}

// AddByte folds one byte into the CRC
func (c TransferCRC) AddByte(b byte) TransferCRC {
	crc := uint16(c) ^ uint16(b)<<8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = crc<<1 ^ 0x1021
		} else {
			crc <<= 1
		}
	}
	return TransferCRC(crc)
}

// Add folds a byte sequence into the CRC
func (c TransferCRC) Add(data []byte) TransferCRC {
	for _, b := range data {
		c = c.AddByte(b)
	}
	return c
}

// Value returns the CRC as transmitted on the wire
func (c TransferCRC) Value() uint16 {
	return uint16(c)
}
