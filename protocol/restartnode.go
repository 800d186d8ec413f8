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

// RestartNodeTypeID is the service type id of the remote restart call
const RestartNodeTypeID = 5

// RestartNodeType describes uavcan.protocol.RestartNode
var RestartNodeType = dsdl.MustServiceType(RestartNodeTypeID, "uavcan.protocol.RestartNode")

// RestartNodeMagic must be carried by a restart request for it to be
// honored, guarding against stray calls
const RestartNodeMagic uint64 = 0xACCE551B1E

// RestartNodeRequest asks a node to restart itself
type RestartNodeRequest struct {
	dsdl.StructAsArray
	MagicNumber uint64
}

// RestartNodeResponse reports whether the restart was accepted
type RestartNodeResponse struct {
	dsdl.StructAsArray
	OK bool
}
