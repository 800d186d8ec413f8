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

	"github.com/avast/retry-go"
	"github.com/spf13/cobra"

	"github.com/EgoPingvina/gouavcan/protocol"
)

func init() {
	callCmd.Flags().DurationVar(&callTimeout, "timeout", time.Second, "per-attempt response timeout")
	callCmd.Flags().UintVar(&callAttempts, "attempts", 3, "number of attempts before giving up")
	rootCmd.AddCommand(callCmd)
}

var (
	callTimeout  time.Duration
	callAttempts uint
)

var callCmd = &cobra.Command{
	Use:   "call <node-id>",
	Short: "Query a node for its GetNodeInfo response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := parseNodeIDArg(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		node, err := buildNode(cfg)
		if err != nil {
			return err
		}
		defer node.Close()
		client, err := node.NewBlockingServiceClient(protocol.GetNodeInfoType)
		if err != nil {
			return err
		}
		client.SetRequestTimeout(callTimeout)
		var info protocol.GetNodeInfoResponse
		err = retry.Do(
			func() error {
				if err := client.Call(server, protocol.GetNodeInfoRequest{}); err != nil {
					return retry.Unrecoverable(err)
				}
				if !client.WasSuccessful() {
					return fmt.Errorf("no response from node %s", server)
				}
				return client.DecodeResponse(&info)
			},
			retry.Context(cmd.Context()),
			retry.Attempts(callAttempts),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return err
		}
		printNodeInfo(server.String(), info)
		return nil
	},
}

func printNodeInfo(id string, info protocol.GetNodeInfoResponse) {
	fmt.Printf("node %s\n", id)
	fmt.Printf("  name:     %s\n", info.Name)
	fmt.Printf("  health:   %s\n", protocol.HealthString(info.Status.Health))
	fmt.Printf("  mode:     %s\n", protocol.ModeString(info.Status.Mode))
	fmt.Printf("  uptime:   %s\n", time.Duration(info.Status.Uptime)*time.Second)
	fmt.Printf("  software: %d.%d", info.SoftwareVersion.Major, info.SoftwareVersion.Minor)
	if info.SoftwareVersion.OptionalFieldFlags&protocol.SoftwareVersionFlagVCSCommit != 0 {
		fmt.Printf(" vcs %08x", info.SoftwareVersion.VCSCommit)
	}
	if info.SoftwareVersion.OptionalFieldFlags&protocol.SoftwareVersionFlagImageCRC != 0 {
		fmt.Printf(" crc %016x", info.SoftwareVersion.ImageCRC)
	}
	fmt.Println()
	fmt.Printf("  hardware: %d.%d uid %X\n",
		info.HardwareVersion.Major,
		info.HardwareVersion.Minor,
		info.HardwareVersion.UniqueID,
	)
}
