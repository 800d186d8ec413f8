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

package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// adjtime(3) refuses offsets of half a second or more
const maxSlew = 500*time.Millisecond - time.Microsecond

// adjustSystemClock slews the kernel clock by the given offset using
// adjtimex(2) single-shot adjustment. Large corrections are clamped to
// the maximum slew the kernel accepts.
func adjustSystemClock(offset time.Duration) error {
	if offset > maxSlew {
		offset = maxSlew
	} else if offset < -maxSlew {
		offset = -maxSlew
	}
	tx := unix.Timex{
		Modes:  unix.ADJ_OFFSET_SINGLESHOT,
		Offset: offset.Microseconds(),
	}
	if _, err := unix.Adjtimex(&tx); err != nil {
		return fmt.Errorf("clock: adjtimex: %w", err)
	}
	return nil
}
