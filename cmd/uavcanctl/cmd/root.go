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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/EgoPingvina/gouavcan"
	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
	"github.com/EgoPingvina/gouavcan/protocol"
	"github.com/EgoPingvina/gouavcan/transport"
)

var rootCmd = &cobra.Command{
	Use:   "uavcanctl",
	Short: "Inspect and control UAVCAN networks",
	Long: `uavcanctl talks to UAVCAN networks over SocketCAN interfaces or
SLCAN serial adapters: dump decoded bus traffic, watch node statuses,
query node information and restart nodes remotely.`,
	SilenceUsage: true,
}

// Execute runs the tool, stopping on SIGINT or SIGTERM
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var (
	flagConfig     string
	flagIfaces     []string
	flagPort       string
	flagBitrate    int
	flagNodeID     uint8
	flagVerbose    bool
	flagNodeName   string
	flagStatusMSec string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringSliceVarP(&flagIfaces, "iface", "i", nil, "SocketCAN interface, repeatable for redundant buses")
	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "serial port of an SLCAN adapter")
	rootCmd.PersistentFlags().IntVarP(&flagBitrate, "bitrate", "b", 1000000, "SLCAN bus bitrate")
	rootCmd.PersistentFlags().Uint8VarP(&flagNodeID, "node-id", "n", 0, "local node id, 1..127")
	rootCmd.PersistentFlags().StringVar(&flagNodeName, "node-name", "", "node name reported by GetNodeInfo")
	rootCmd.PersistentFlags().StringVar(&flagStatusMSec, "status-interval", "", "NodeStatus broadcast period, e.g. 500ms")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

type config struct {
	NodeID         uint8    `yaml:"node_id"`
	Interfaces     []string `yaml:"interfaces"`
	SLCANPort      string   `yaml:"slcan_port"`
	SLCANBitrate   int      `yaml:"slcan_bitrate"`
	NodeName       string   `yaml:"node_name"`
	StatusInterval string   `yaml:"status_interval"`
	Verbose        bool     `yaml:"verbose"`
}

func defaultConfig() config {
	return config{
		SLCANBitrate: 1000000,
		NodeName:     "org.uavcan.uavcanctl",
	}
}

// loadConfig merges the defaults, the config file and the command line,
// in that order
func loadConfig(cmd *cobra.Command) (config, error) {
	cfg := defaultConfig()
	if flagConfig != "" {
		data, err := os.ReadFile(flagConfig)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("node-id") {
		cfg.NodeID = flagNodeID
	}
	if flags.Changed("iface") {
		cfg.Interfaces = flagIfaces
	}
	if flags.Changed("port") {
		cfg.SLCANPort = flagPort
	}
	if flags.Changed("bitrate") {
		cfg.SLCANBitrate = flagBitrate
	}
	if flags.Changed("node-name") {
		cfg.NodeName = flagNodeName
	}
	if flags.Changed("status-interval") {
		cfg.StatusInterval = flagStatusMSec
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	return cfg, nil
}

func newLogger(cfg config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildDriver opens the configured bus access: an SLCAN adapter when a
// serial port is set, SocketCAN interfaces otherwise
func buildDriver(cfg config) (can.Driver, error) {
	if cfg.SLCANPort != "" {
		return can.NewSLCAN(cfg.SLCANPort, cfg.SLCANBitrate)
	}
	if len(cfg.Interfaces) > 0 {
		return openSocketCAN(cfg.Interfaces)
	}
	return nil, errors.New("no CAN interface configured: set --iface or --port")
}

// buildNode opens the configured driver and returns a started node
// owning it
func buildNode(cfg config) (*uavcan.Node, error) {
	driver, err := buildDriver(cfg)
	if err != nil {
		return nil, err
	}
	pack := &uavcan.DriverPack{
		Clock:  clock.NewSystemClock(clock.DetectAdjustmentMode()),
		Driver: driver,
	}
	options := []uavcan.NodeOptionFunc{
		uavcan.WithDriverPack(pack),
		uavcan.WithNodeID(transport.NodeID(cfg.NodeID)),
		uavcan.WithLogger(newLogger(cfg)),
		uavcan.WithNodeName(cfg.NodeName),
		uavcan.WithSoftwareVersion(protocol.SoftwareVersion{Major: 0, Minor: 1}),
		uavcan.WithHardwareVersion(protocol.HardwareVersion{UniqueID: protocol.RandomUniqueID()}),
	}
	if cfg.StatusInterval != "" {
		interval, err := time.ParseDuration(cfg.StatusInterval)
		if err != nil {
			pack.Close()
			return nil, fmt.Errorf("invalid status interval: %w", err)
		}
		options = append(options, uavcan.WithStatusInterval(interval))
	}
	node, err := uavcan.NewNode(options...)
	if err != nil {
		pack.Close()
		return nil, err
	}
	if err := node.Start(); err != nil {
		node.Close()
		return nil, err
	}
	return node, nil
}

// spinUntil runs the node until the context is cancelled
func spinUntil(ctx context.Context, node *uavcan.Node) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := node.Spin(100 * time.Millisecond); err != nil {
			return err
		}
	}
}

func parseNodeIDArg(arg string) (transport.NodeID, error) {
	var id uint8
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid node id %q", arg)
	}
	nodeID := transport.NodeID(id)
	if !nodeID.IsUnicast() {
		return 0, fmt.Errorf("node id %d out of range 1..127", id)
	}
	return nodeID, nil
}
