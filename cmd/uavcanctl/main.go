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

// uavcanctl is a command line tool for working with UAVCAN networks:
// dumping bus traffic, watching node statuses, querying node information
// and restarting nodes remotely.
package main

import (
	"github.com/EgoPingvina/gouavcan/cmd/uavcanctl/cmd"
)

func main() {
	cmd.Execute()
}
