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
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EgoPingvina/gouavcan/dsdl"
	"github.com/EgoPingvina/gouavcan/protocol"
	"github.com/EgoPingvina/gouavcan/transport"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	healthOKColor   = color.New(color.FgGreen).SprintfFunc()
	healthWarnColor = color.New(color.FgYellow).SprintfFunc()
	healthBadColor  = color.New(color.FgRed).SprintfFunc()
)

func renderHealth(health uint8) string {
	text := protocol.HealthString(health)
	switch health {
	case protocol.HealthOK:
		return healthOKColor("%-8s", text)
	case protocol.HealthWarning:
		return healthWarnColor("%-8s", text)
	default:
		return healthBadColor("%-8s", text)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Watch NodeStatus broadcasts",
	Long: `status prints a line for every NodeStatus broadcast on the bus and
reports nodes that fall silent for longer than the offline timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		node, err := buildNode(cfg)
		if err != nil {
			return err
		}
		defer node.Close()
		lastSeen := make(map[transport.NodeID]time.Time)
		offline := make(map[transport.NodeID]bool)
		_, err = node.Subscribe(protocol.NodeStatusType, func(tr *transport.Transfer) {
			var status protocol.NodeStatus
			if err := dsdl.Unmarshal(tr.Payload, &status); err != nil {
				return
			}
			lastSeen[tr.Source] = tr.Timestamp
			if offline[tr.Source] {
				delete(offline, tr.Source)
				fmt.Printf("node %-3s back online\n", tr.Source)
			}
			fmt.Printf("node %-3s  health=%s mode=%-15s uptime=%-8s vendor=0x%04X\n",
				tr.Source,
				renderHealth(status.Health),
				protocol.ModeString(status.Mode),
				(time.Duration(status.Uptime) * time.Second).String(),
				status.VendorSpecificStatusCode,
			)
		})
		if err != nil {
			return err
		}
		if _, err := node.SchedulePeriodic(time.Second, func(now time.Time) {
			for id, seen := range lastSeen {
				if offline[id] || now.Sub(seen) < protocol.OfflineTimeout {
					continue
				}
				offline[id] = true
				fmt.Printf("node %-3s  %s last seen %s ago\n",
					id,
					healthBadColor("%-8s", "offline"),
					now.Sub(seen).Round(time.Second),
				)
			}
		}); err != nil {
			return err
		}
		return spinUntil(cmd.Context(), node)
	},
}
