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

package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/transport"
)

var monitorFilterID int

func init() {
	monitorCmd.Flags().IntVar(&monitorFilterID, "filter-id", -1,
		"only print frames carrying this data type id")
	rootCmd.AddCommand(monitorCmd)
}

var (
	messageColor   = color.New(color.FgGreen).SprintfFunc()
	serviceColor   = color.New(color.FgYellow).SprintfFunc()
	anonymousColor = color.New(color.FgCyan).SprintfFunc()
	foreignColor   = color.New(color.FgHiBlack).SprintfFunc()
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Dump decoded bus traffic",
	Long: `monitor prints every received frame with its identifier decoded:
transfer priority, data type id, source and destination nodes and the
tail byte. Frames that are not UAVCAN traffic are dimmed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var filterID uint16
		if monitorFilterID >= 0 {
			if monitorFilterID > math.MaxUint16 {
				return fmt.Errorf("filter id %d out of range", monitorFilterID)
			}
			filterID = uint16(monitorFilterID)
		}
		driver, err := buildDriver(cfg)
		if err != nil {
			return err
		}
		defer driver.Close()
		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			rx, ok, err := driver.Receive(time.Now().Add(100 * time.Millisecond))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if monitorFilterID >= 0 && !carriesDataType(rx.Frame, filterID) {
				continue
			}
			fmt.Println(renderFrame(driver, rx))
		}
	},
}

// carriesDataType reports whether the frame is UAVCAN traffic for the given
// data type id. Anonymous frames carry only the two lowest id bits, so they
// match on those alone.
func carriesDataType(f can.Frame, id uint16) bool {
	if !f.Extended || f.RTR || f.Length == 0 {
		return false
	}
	cid := transport.ParseCANID(f.ID)
	if cid.Anonymous {
		return cid.DataTypeID == id&0x03
	}
	return cid.DataTypeID == id
}

func renderFrame(driver can.Driver, rx can.RxFrame) string {
	var out strings.Builder
	out.WriteString(rx.Timestamp.Format("15:04:05.000000"))
	out.WriteString(" ")
	out.WriteString(driver.InterfaceName(rx.Iface))
	out.WriteString("  ")
	if !rx.Extended || rx.RTR || rx.Length == 0 {
		out.WriteString(foreignColor("%-28s", "foreign"))
		out.WriteString("  ")
		out.WriteString(rx.Frame.ColorString())
		return out.String()
	}
	cid := transport.ParseCANID(rx.ID)
	switch {
	case cid.Service && cid.Request:
		out.WriteString(serviceColor("req  svc=%-3d %s->%s", cid.DataTypeID, cid.Source, cid.Destination))
	case cid.Service:
		out.WriteString(serviceColor("resp svc=%-3d %s->%s", cid.DataTypeID, cid.Source, cid.Destination))
	case cid.Anonymous:
		out.WriteString(anonymousColor("anon dtid=%d (low bits)", cid.DataTypeID))
	default:
		out.WriteString(messageColor("msg  dtid=%-5d src=%s", cid.DataTypeID, cid.Source))
	}
	tail := transport.ParseTail(rx.Data[rx.Length-1])
	out.WriteString(fmt.Sprintf("  prio=%-2d tid=%-2d", cid.Priority, tail.TransferID))
	if tail.SingleFrame() {
		out.WriteString(" single")
	} else {
		if tail.Start {
			out.WriteString(" start")
		}
		if tail.End {
			out.WriteString(" end")
		}
		if tail.Toggle {
			out.WriteString(" toggle")
		}
	}
	out.WriteString(fmt.Sprintf("  [% X]", rx.Payload()))
	return out.String()
}
