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
	"github.com/google/uuid"
)

// GetNodeInfoTypeID is the service type id of the node identification call
const GetNodeInfoTypeID = 1

// GetNodeInfoType describes uavcan.protocol.GetNodeInfo
var GetNodeInfoType = dsdl.MustServiceType(GetNodeInfoTypeID, "uavcan.protocol.GetNodeInfo")

// MaxNodeNameLength bounds the node name in GetNodeInfoResponse
const MaxNodeNameLength = 80

const (
	// SoftwareVersionFlagVCSCommit marks the VCSCommit field as populated
	SoftwareVersionFlagVCSCommit uint8 = 1

	// SoftwareVersionFlagImageCRC marks the ImageCRC field as populated
	SoftwareVersionFlagImageCRC uint8 = 2
)

// SoftwareVersion identifies the firmware running on a node
type SoftwareVersion struct {
	dsdl.StructAsArray
	Major              uint8
	Minor              uint8
	OptionalFieldFlags uint8
	VCSCommit          uint32
	ImageCRC           uint64
}

// HardwareVersion identifies the hardware a node runs on. UniqueID must be
// globally unique per physical unit.
type HardwareVersion struct {
	dsdl.StructAsArray
	Major                     uint8
	Minor                     uint8
	UniqueID                  [16]byte
	CertificateOfAuthenticity []byte
}

// GetNodeInfoRequest carries no fields
type GetNodeInfoRequest struct {
	dsdl.StructAsArray
}

// GetNodeInfoResponse identifies the responding node
type GetNodeInfoResponse struct {
	dsdl.StructAsArray
	Status          NodeStatus
	SoftwareVersion SoftwareVersion
	HardwareVersion HardwareVersion
	Name            string
}

// RandomUniqueID generates a hardware unique id for nodes without one
// burned in. Persist the result if the id must survive restarts.
func RandomUniqueID() [16]byte {
	return [16]byte(uuid.New())
}
