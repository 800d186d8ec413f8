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

package uavcan

import (
	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
	"github.com/EgoPingvina/gouavcan/transport"
)

// NewDriverPack opens the named SocketCAN interfaces under a system clock
// in the given adjustment mode. Opening stops at the first failing
// interface; interfaces added before it are not rolled back and are
// closed with the rest of the partial driver.
func NewDriverPack(mode clock.AdjustmentMode, ifaceNames ...string) (*DriverPack, error) {
	driver, err := can.NewSocketCAN(ifaceNames...)
	if err != nil {
		return nil, err
	}
	return &DriverPack{
		Clock:  clock.NewSystemClock(mode),
		Driver: driver,
	}, nil
}

// NewNodeWithInterfaces opens the named SocketCAN interfaces and returns
// a node owning them. The clock adjustment mode is detected from the
// process privileges.
func NewNodeWithInterfaces(
	id transport.NodeID,
	ifaceNames []string,
	options ...NodeOptionFunc,
) (*Node, error) {
	if len(ifaceNames) == 0 {
		return nil, transport.NewError(transport.CodeInvalidParam, "no interfaces given")
	}
	pack, err := NewDriverPack(clock.DetectAdjustmentMode(), ifaceNames...)
	if err != nil {
		return nil, err
	}
	allOptions := []NodeOptionFunc{
		WithNodeID(id),
		WithDriverPack(pack),
	}
	allOptions = append(allOptions, options...)
	node, err := NewNode(allOptions...)
	if err != nil {
		pack.Close()
		return nil, err
	}
	return node, nil
}
