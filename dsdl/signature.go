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

package dsdl

// CRC-64-WE: poly 0x42F0E1EBA9EA3693, init and xorout all ones, no
// reflection. Check value for "123456789" is 0x62EC59E3F1A4F00A.
const signaturePoly = 0x42F0E1EBA9EA3693

var signatureTable [256]uint64

func init() {
	for i := range signatureTable {
		crc := uint64(i) << 56
		for bit := 0; bit < 8; bit++ {
			if crc&(1<<63) != 0 {
				crc = crc<<1 ^ signaturePoly
			} else {
				crc <<= 1
			}
		}
		signatureTable[i] = crc
	}
}

// Signature computes the data type signature of a full type name
func Signature(name string) uint64 {
	crc := ^uint64(0)
	for i := 0; i < len(name); i++ {
		crc = signatureTable[byte(crc>>56)^name[i]] ^ crc<<8
	}
	return ^crc
}
