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

// Package uavcan implements a UAVCAN node for CAN bus networks.
//
// A node owns a CAN driver and multiplexes any number of publishers,
// subscribers, service servers and service clients over it. All protocol
// work happens inside Spin and SpinOnce on the calling goroutine; the
// library starts no goroutines of its own, so an application decides for
// itself how the node shares time with the rest of the program.
//
// This package is the main entry point into this library. The transport,
// dsdl and can packages can be used on their own, but that is not a
// primary design goal.
package uavcan

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/EgoPingvina/gouavcan/can"
	"github.com/EgoPingvina/gouavcan/clock"
	"github.com/EgoPingvina/gouavcan/dsdl"
	"github.com/EgoPingvina/gouavcan/protocol"
	"github.com/EgoPingvina/gouavcan/transport"
)

// RestartHandler decides whether a remote restart request is honored.
// Returning true acknowledges the request; actually restarting is the
// application's job.
type RestartHandler func(source transport.NodeID) bool

// The Node type wraps a CAN driver and handles communication using the
// UAVCAN protocol over that bus
type Node struct {
	driver            can.Driver
	pack              *DriverPack
	clk               clock.Clock
	logger            *slog.Logger
	id                transport.NodeID
	ifaceMask         uint8
	statusInterval    time.Duration
	nodeName          string
	swVersion         protocol.SoftwareVersion
	hwVersion         protocol.HardwareVersion
	restartHandler    RestartHandler
	sender            *transport.Sender
	dispatcher        *transport.Dispatcher
	timers            *timerQueue
	started           bool
	spinning          bool
	closed            bool
	startedAt         time.Time
	health            uint8
	mode              uint8
	vendorStatus      uint16
	logBroadcastLevel uint8
	statusPub         *Publisher
	logPub            *Publisher
	infoServer        *ServiceServer
	restartServer     *ServiceServer
	onceStart         sync.Once
	onceClose         sync.Once
}

// NewNode returns a new Node object with the specified options. A driver
// must be provided, either borrowed through WithDriver or owned through
// WithDriverPack.
func NewNode(options ...NodeOptionFunc) (*Node, error) {
	n := &Node{
		ifaceMask:      can.AllIfacesMask,
		statusInterval: protocol.DefaultStatusInterval,
		health:         protocol.HealthOK,
		mode:           protocol.ModeInitialization,
		timers:         newTimerQueue(),
	}
	// Apply provided options functions
	for _, option := range options {
		option(n)
	}
	if n.driver == nil {
		return nil, transport.NewError(transport.CodeInvalidParam, "no CAN driver provided")
	}
	if !n.id.Valid() {
		return nil, transport.Errorf(transport.CodeInvalidParam, "node id %d out of range", n.id)
	}
	if n.statusInterval <= 0 || n.statusInterval > protocol.MaxStatusInterval {
		return nil, transport.Errorf(
			transport.CodeInvalidParam,
			"status interval %s out of range",
			n.statusInterval,
		)
	}
	if n.clk == nil {
		n.clk = clock.NewSystemClock(clock.AdjustmentModePerDriverPrivate)
	}
	if n.logger == nil {
		n.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	n.logger = n.logger.With("component", "uavcan")
	n.sender = transport.NewSender(n.driver, n.clk)
	n.sender.SetIfaceMask(n.ifaceMask)
	n.dispatcher = transport.NewDispatcher()
	return n, nil
}

// ID returns the local node id, zero when the node is passive
func (n *Node) ID() transport.NodeID {
	return n.id
}

// SetNodeID assigns a node id to a node constructed without one. The id
// can only be set before Start and only once.
func (n *Node) SetNodeID(id transport.NodeID) error {
	if n.started || n.closed {
		return transport.NewError(transport.CodeLogic, "node id cannot change after start")
	}
	if n.id.IsUnicast() {
		return transport.NewError(transport.CodeLogic, "node id already set")
	}
	if !id.IsUnicast() {
		return transport.Errorf(transport.CodeInvalidParam, "node id %s is not unicast", id)
	}
	n.id = id
	return nil
}

// Driver returns the CAN driver backing the node
func (n *Node) Driver() can.Driver {
	return n.driver
}

// Clock returns the node's clock
func (n *Node) Clock() clock.Clock {
	return n.clk
}

// Logger returns the node's logger
func (n *Node) Logger() *slog.Logger {
	return n.logger
}

// Passive reports whether the node runs without a node id. A passive node
// can subscribe to broadcasts and publish anonymous single-frame
// transfers, but cannot take part in service calls.
func (n *Node) Passive() bool {
	return !n.id.IsUnicast()
}

// Start brings the node online. A node with an id registers the standard
// GetNodeInfo and RestartNode servers and begins broadcasting NodeStatus;
// a passive node only enables anonymous transmission. Starting twice is a
// no-op.
func (n *Node) Start() error {
	if n.closed {
		return transport.NewError(transport.CodeNotInited, "node is closed")
	}
	var err error
	n.onceStart.Do(func() {
		err = n.start()
	})
	return err
}

func (n *Node) start() error {
	n.startedAt = n.clk.Now()
	if n.Passive() {
		n.sender.AllowAnonymousTransfers()
		n.started = true
		n.logger.Info("starting node in passive mode",
			"interfaces", n.driver.InterfaceCount(),
		)
		return nil
	}
	// The node answers for itself before the application registers
	// anything else
	var err error
	n.started = true
	n.statusPub, err = n.NewPublisher(protocol.NodeStatusType)
	if err != nil {
		n.started = false
		return err
	}
	n.logPub, err = n.NewPublisher(protocol.LogMessageType)
	if err != nil {
		n.started = false
		return err
	}
	n.logPub.SetPriority(transport.PriorityLowest)
	n.infoServer, err = n.RegisterServiceServer(protocol.GetNodeInfoType, n.handleGetNodeInfo)
	if err != nil {
		n.started = false
		return err
	}
	n.restartServer, err = n.RegisterServiceServer(protocol.RestartNodeType, n.handleRestartNode)
	if err != nil {
		n.started = false
		return err
	}
	n.timers.schedule(n.clk.Now(), n.statusInterval, func(now time.Time) {
		n.broadcastStatus(now)
	})
	n.logger.Info("starting node",
		"node_id", n.id.String(),
		"interfaces", n.driver.InterfaceCount(),
		"status_interval", n.statusInterval,
	)
	return nil
}

// Close shuts the node down. A driver pack given to the node is closed
// with it; a borrowed driver is left open.
func (n *Node) Close() error {
	var err error
	n.onceClose.Do(func() {
		n.closed = true
		n.started = false
		n.logger.Debug("closing node")
		if n.pack != nil {
			err = n.pack.Close()
		}
	})
	return err
}

// Spin runs the node for the given duration: it receives and dispatches
// frames, fires due timers and invokes listener callbacks, all on the
// calling goroutine. Spin returns early only on a driver failure.
// Calling Spin from inside a callback is rejected.
func (n *Node) Spin(d time.Duration) error {
	if err := n.beginSpin(); err != nil {
		return err
	}
	defer n.endSpin()
	deadline := n.clk.Now().Add(d)
	for {
		now := n.clk.Now()
		n.runDueTimers(now)
		if !now.Before(deadline) {
			return nil
		}
		pollDeadline := deadline
		if next, ok := n.timers.next(); ok && next.Before(pollDeadline) {
			pollDeadline = next
		}
		rx, ok, err := n.driver.Receive(pollDeadline)
		if err != nil {
			return transport.WrapError(transport.CodeDriver, "frame reception", err)
		}
		if ok {
			n.handleFrame(rx)
		}
	}
}

// SpinOnce fires due timers and dispatches every frame already received,
// without blocking
func (n *Node) SpinOnce() error {
	if err := n.beginSpin(); err != nil {
		return err
	}
	defer n.endSpin()
	n.runDueTimers(n.clk.Now())
	for {
		rx, ok, err := n.driver.Receive(n.clk.Now())
		if err != nil {
			return transport.WrapError(transport.CodeDriver, "frame reception", err)
		}
		if !ok {
			return nil
		}
		n.handleFrame(rx)
	}
}

func (n *Node) beginSpin() error {
	if !n.started {
		return transport.NewError(transport.CodeNotInited, "node not started")
	}
	if n.spinning {
		return transport.NewError(transport.CodeLogic, "spin called from a callback")
	}
	n.spinning = true
	return nil
}

func (n *Node) endSpin() {
	n.spinning = false
}

func (n *Node) handleFrame(rx can.RxFrame) {
	if err := n.dispatcher.HandleFrame(rx, n.id); err != nil {
		n.logger.Debug("dropped frame",
			"frame", rx.Frame.String(),
			"iface", n.driver.InterfaceName(rx.Iface),
			"error", err,
		)
	}
}

func (n *Node) runDueTimers(now time.Time) {
	for {
		entry := n.timers.popDue(now)
		if entry == nil {
			return
		}
		if entry.period > 0 {
			// Re-arm before the callback so the callback can cancel
			// its own timer
			entry.when = entry.when.Add(entry.period)
			if !entry.when.After(now) {
				entry.when = now.Add(entry.period)
			}
			n.timers.rearm(entry)
		} else {
			n.timers.forget(entry.id)
		}
		entry.fn(now)
	}
}

// ScheduleOnce arranges for fn to run once after the given delay, during
// a future Spin or SpinOnce
func (n *Node) ScheduleOnce(delay time.Duration, fn TimerFunc) (TimerID, error) {
	if fn == nil {
		return 0, transport.NewError(transport.CodeInvalidParam, "nil timer callback")
	}
	if delay < 0 {
		delay = 0
	}
	return n.timers.schedule(n.clk.Now().Add(delay), 0, fn), nil
}

// SchedulePeriodic arranges for fn to run every period, starting one
// period from now
func (n *Node) SchedulePeriodic(period time.Duration, fn TimerFunc) (TimerID, error) {
	if fn == nil {
		return 0, transport.NewError(transport.CodeInvalidParam, "nil timer callback")
	}
	if period <= 0 {
		return 0, transport.Errorf(transport.CodeInvalidParam, "period %s out of range", period)
	}
	return n.timers.schedule(n.clk.Now().Add(period), period, fn), nil
}

// CancelTimer stops a scheduled timer
func (n *Node) CancelTimer(id TimerID) error {
	if !n.timers.cancel(id) {
		return transport.Errorf(transport.CodeInvalidParam, "unknown timer id %d", id)
	}
	return nil
}

// SetHealth updates the health value carried by status broadcasts
func (n *Node) SetHealth(health uint8) error {
	if health > protocol.HealthCritical {
		return transport.Errorf(transport.CodeInvalidParam, "health %d out of range", health)
	}
	n.health = health
	return nil
}

// SetMode updates the mode value carried by status broadcasts
func (n *Node) SetMode(mode uint8) error {
	switch mode {
	case protocol.ModeOperational, protocol.ModeInitialization,
		protocol.ModeMaintenance, protocol.ModeSoftwareUpdate, protocol.ModeOffline:
	default:
		return transport.Errorf(transport.CodeInvalidParam, "mode %d out of range", mode)
	}
	n.mode = mode
	return nil
}

// SetVendorStatusCode updates the vendor-specific value carried by status
// broadcasts
func (n *Node) SetVendorStatusCode(code uint16) {
	n.vendorStatus = code
}

// Status returns the status the node is currently broadcasting
func (n *Node) Status() protocol.NodeStatus {
	return n.currentStatus(n.clk.Now())
}

func (n *Node) currentStatus(now time.Time) protocol.NodeStatus {
	var uptime uint32
	if n.started && now.After(n.startedAt) {
		seconds := int64(now.Sub(n.startedAt) / time.Second)
		if seconds > int64(^uint32(0)) {
			seconds = int64(^uint32(0))
		}
		uptime = uint32(seconds)
	}
	return protocol.NodeStatus{
		Uptime:                   uptime,
		Health:                   n.health,
		Mode:                     n.mode,
		VendorSpecificStatusCode: n.vendorStatus,
	}
}

func (n *Node) broadcastStatus(now time.Time) {
	if err := n.statusPub.Publish(n.currentStatus(now)); err != nil {
		n.logger.Debug("status broadcast failed", "error", err)
	}
}

// SetLogBroadcastLevel sets the minimum level a Logf record needs to be
// broadcast on the bus. Records below it still reach the local logger.
// The default broadcasts every level.
func (n *Node) SetLogBroadcastLevel(level uint8) {
	n.logBroadcastLevel = level
}

// Logf writes a log record to the local logger and broadcasts it on the
// bus, clamped to the wire limits of LogMessage
func (n *Node) Logf(level uint8, source string, format string, args ...interface{}) error {
	if !n.started {
		return transport.NewError(transport.CodeNotInited, "node not started")
	}
	text := fmt.Sprintf(format, args...)
	n.sinkLog(level, source, text)
	if level < n.logBroadcastLevel {
		return nil
	}
	if n.logPub == nil {
		return transport.NewError(transport.CodePassiveMode, "passive node cannot log to the bus")
	}
	msg := protocol.LogMessage{
		Level:  level,
		Source: source,
		Text:   text,
	}
	return n.logPub.Publish(msg.Truncated())
}

func (n *Node) sinkLog(level uint8, source string, text string) {
	switch level {
	case protocol.LogLevelDebug:
		n.logger.Debug(text, "source", source)
	case protocol.LogLevelInfo:
		n.logger.Info(text, "source", source)
	case protocol.LogLevelWarning:
		n.logger.Warn(text, "source", source)
	default:
		n.logger.Error(text, "source", source)
	}
}

func (n *Node) handleGetNodeInfo(req *transport.Transfer) (interface{}, error) {
	return protocol.GetNodeInfoResponse{
		Status:          n.currentStatus(req.Timestamp),
		SoftwareVersion: n.swVersion,
		HardwareVersion: n.hwVersion,
		Name:            n.nodeName,
	}, nil
}

func (n *Node) handleRestartNode(req *transport.Transfer) (interface{}, error) {
	var request protocol.RestartNodeRequest
	if err := dsdl.Unmarshal(req.Payload, &request); err != nil {
		return nil, err
	}
	ok := false
	if request.MagicNumber == protocol.RestartNodeMagic && n.restartHandler != nil {
		ok = n.restartHandler(req.Source)
	}
	if !ok {
		n.logger.Debug("restart request refused",
			"source", req.Source.String(),
			"magic", fmt.Sprintf("%010X", request.MagicNumber),
		)
	}
	return protocol.RestartNodeResponse{OK: ok}, nil
}
