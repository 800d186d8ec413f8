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

package can

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// rawFrameSize is the size of the kernel "struct can_frame":
//
//	0..3  can_id (flags in the top bits: EFF/RTR/ERR)
//	4     data length
//	5..7  padding
//	8..15 data
const rawFrameSize = 16

// SocketCAN drives a group of Linux SocketCAN network interfaces through
// raw AF_CAN sockets. All sockets are non-blocking; readiness is tracked
// with poll(2) so Receive can honor a deadline.
type SocketCAN struct {
	fds   []int
	names []string

	mu     sync.Mutex
	closed bool
}

// NewSocketCAN opens a raw CAN socket bound to each named interface, e.g.
// "can0". Opening stops at the first failing interface and closes the ones
// already open. Further interfaces can be added with AddInterface.
func NewSocketCAN(ifaceNames ...string) (*SocketCAN, error) {
	s := &SocketCAN{}
	for _, name := range ifaceNames {
		if err := s.AddInterface(name); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// AddInterface opens a raw CAN socket bound to the named interface and
// adds it to the group. A failing add leaves the interfaces already in
// the group untouched and usable. AddInterface must not be called
// concurrently with Send or Receive.
func (s *SocketCAN) AddInterface(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.fds) >= MaxInterfaces {
		return fmt.Errorf("can: interface limit of %d reached", MaxInterfaces)
	}
	fd, err := openRawCAN(name)
	if err != nil {
		return fmt.Errorf("can: open %s: %w", name, err)
	}
	s.fds = append(s.fds, fd)
	s.names = append(s.names, name)
	return nil
}

func openRawCAN(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (s *SocketCAN) Send(frame Frame, ifaceMask uint8, deadline time.Time) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	buf := encodeRawFrame(frame)
	sent := false
	for i, fd := range s.fds {
		if ifaceMask&(1<<uint(i)) == 0 {
			continue
		}
		if err := writeRawFrame(fd, buf[:], deadline); err != nil {
			return fmt.Errorf("can: send on %s: %w", s.names[i], err)
		}
		sent = true
	}
	if !sent {
		return ErrNoInterface
	}
	return nil
}

func writeRawFrame(fd int, buf []byte, deadline time.Time) error {
	for {
		n, err := unix.Write(fd, buf)
		if err == nil {
			if n != len(buf) {
				return errors.New("short write")
			}
			return nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return err
		}
		// TX queue full, wait for room until the deadline
		timeout := pollTimeout(deadline)
		if timeout == 0 {
			return ErrTxTimeout
		}
		pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		if _, err := unix.Poll(pfds, timeout); err != nil && err != unix.EINTR {
			return err
		}
	}
}

func (s *SocketCAN) Receive(deadline time.Time) (RxFrame, bool, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return RxFrame{}, false, ErrClosed
		}
		pfds := make([]unix.PollFd, len(s.fds))
		for i, fd := range s.fds {
			pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
		}
		n, err := unix.Poll(pfds, pollTimeout(deadline))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return RxFrame{}, false, fmt.Errorf("can: poll: %w", err)
		}
		if n == 0 {
			return RxFrame{}, false, nil
		}
		for i, pfd := range pfds {
			if pfd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) == 0 {
				continue
			}
			var buf [rawFrameSize]byte
			m, err := unix.Read(s.fds[i], buf[:])
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			if err != nil {
				return RxFrame{}, false, fmt.Errorf("can: read %s: %w", s.names[i], err)
			}
			if m < rawFrameSize {
				continue
			}
			f, ok := decodeRawFrame(buf)
			if !ok {
				// error frame, not payload traffic
				continue
			}
			return RxFrame{Frame: f, Timestamp: time.Now(), Iface: i}, true, nil
		}
		if !time.Now().Before(deadline) {
			return RxFrame{}, false, nil
		}
	}
}

// pollTimeout converts a deadline to a poll(2) timeout in milliseconds,
// rounding up so short waits do not spin.
func pollTimeout(deadline time.Time) int {
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	return int(ms)
}

func (s *SocketCAN) InterfaceCount() int {
	return len(s.fds)
}

func (s *SocketCAN) InterfaceName(i int) string {
	if i < 0 || i >= len(s.names) {
		return ""
	}
	return s.names[i]
}

func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for _, fd := range s.fds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// encodeRawFrame packs a frame into the kernel can_frame layout. The
// kernel expects host byte order; all supported targets are little-endian.
func encodeRawFrame(f Frame) [rawFrameSize]byte {
	var buf [rawFrameSize]byte
	id := f.ID
	if f.Extended {
		id |= unix.CAN_EFF_FLAG
	}
	if f.RTR {
		id |= unix.CAN_RTR_FLAG
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Length
	copy(buf[8:], f.Data[:f.Length])
	return buf
}

func decodeRawFrame(buf [rawFrameSize]byte) (Frame, bool) {
	id := binary.LittleEndian.Uint32(buf[0:4])
	if id&unix.CAN_ERR_FLAG != 0 {
		return Frame{}, false
	}
	f := Frame{
		Extended: id&unix.CAN_EFF_FLAG != 0,
		RTR:      id&unix.CAN_RTR_FLAG != 0,
	}
	if f.Extended {
		f.ID = id & unix.CAN_EFF_MASK
	} else {
		f.ID = id & unix.CAN_SFF_MASK
	}
	f.Length = buf[4]
	if f.Length > MaxDataLen {
		f.Length = MaxDataLen
	}
	copy(f.Data[:], buf[8:8+f.Length])
	return f, true
}
