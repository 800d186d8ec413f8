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

	"github.com/spf13/cobra"

	"github.com/EgoPingvina/gouavcan/protocol"
)

func init() {
	restartCmd.Flags().DurationVar(&restartTimeout, "timeout", time.Second, "response timeout")
	rootCmd.AddCommand(restartCmd)
}

var restartTimeout time.Duration

var restartCmd = &cobra.Command{
	Use:   "restart <node-id>",
	Short: "Ask a node to restart itself",
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
		client, err := node.NewBlockingServiceClient(protocol.RestartNodeType)
		if err != nil {
			return err
		}
		request := protocol.RestartNodeRequest{MagicNumber: protocol.RestartNodeMagic}
		if err := client.CallWithTimeout(server, request, restartTimeout); err != nil {
			return err
		}
		if !client.WasSuccessful() {
			return fmt.Errorf("no response from node %s", server)
		}
		var response protocol.RestartNodeResponse
		if err := client.DecodeResponse(&response); err != nil {
			return err
		}
		if !response.OK {
			return fmt.Errorf("node %s refused to restart", server)
		}
		fmt.Printf("node %s is restarting\n", server)
		return nil
	},
}
