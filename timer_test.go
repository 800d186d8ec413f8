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
	"testing"
	"time"
)

func TestTimerQueueOrdering(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(1700000000, 0)
	var fired []int
	q.schedule(base.Add(30*time.Millisecond), 0, func(time.Time) { fired = append(fired, 3) })
	q.schedule(base.Add(10*time.Millisecond), 0, func(time.Time) { fired = append(fired, 1) })
	q.schedule(base.Add(20*time.Millisecond), 0, func(time.Time) { fired = append(fired, 2) })
	next, ok := q.next()
	if !ok {
		t.Fatalf("expected a pending timer")
	}
	if !next.Equal(base.Add(10 * time.Millisecond)) {
		t.Fatalf("unexpected next deadline: %s", next)
	}
	for {
		entry := q.popDue(base.Add(time.Second))
		if entry == nil {
			break
		}
		q.forget(entry.id)
		entry.fn(base)
	}
	if len(fired) != 3 || fired[0] != 1 || fired[1] != 2 || fired[2] != 3 {
		t.Fatalf("unexpected firing order: %v", fired)
	}
	if q.pending() != 0 {
		t.Fatalf("expected empty queue, %d pending", q.pending())
	}
}

func TestTimerQueueCancel(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(1700000000, 0)
	id := q.schedule(base.Add(10*time.Millisecond), 0, func(time.Time) {
		t.Fatalf("cancelled timer fired")
	})
	if !q.cancel(id) {
		t.Fatalf("expected cancel to succeed")
	}
	if q.cancel(id) {
		t.Fatalf("expected second cancel to fail")
	}
	if entry := q.popDue(base.Add(time.Second)); entry != nil {
		t.Fatalf("cancelled timer surfaced")
	}
	if _, ok := q.next(); ok {
		t.Fatalf("expected no pending deadline")
	}
}

func TestTimerQueueNotDueYet(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(1700000000, 0)
	q.schedule(base.Add(50*time.Millisecond), 0, func(time.Time) {})
	if entry := q.popDue(base.Add(49 * time.Millisecond)); entry != nil {
		t.Fatalf("timer surfaced before its deadline")
	}
	if entry := q.popDue(base.Add(50 * time.Millisecond)); entry == nil {
		t.Fatalf("timer did not surface at its deadline")
	}
}

func TestNodeScheduleOnce(t *testing.T) {
	node := newTestNode(t, 10)
	defer node.Close()
	fired := 0
	if _, err := node.ScheduleOnce(5*time.Millisecond, func(time.Time) { fired++ }); err != nil {
		t.Fatalf("unexpected error when scheduling: %s", err)
	}
	if err := node.Spin(20 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error when spinning: %s", err)
	}
	if fired != 1 {
		t.Fatalf("expected one firing, got %d", fired)
	}
}

func TestNodeSchedulePeriodic(t *testing.T) {
	node := newTestNode(t, 10)
	defer node.Close()
	fired := 0
	id, err := node.SchedulePeriodic(5*time.Millisecond, func(time.Time) { fired++ })
	if err != nil {
		t.Fatalf("unexpected error when scheduling: %s", err)
	}
	if err := node.Spin(26 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error when spinning: %s", err)
	}
	if fired < 3 {
		t.Fatalf("expected at least three firings, got %d", fired)
	}
	if err := node.CancelTimer(id); err != nil {
		t.Fatalf("unexpected error when cancelling: %s", err)
	}
	count := fired
	if err := node.Spin(15 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error when spinning: %s", err)
	}
	if fired != count {
		t.Fatalf("cancelled timer kept firing")
	}
}

func TestNodeTimerCancelSelf(t *testing.T) {
	node := newTestNode(t, 10)
	defer node.Close()
	fired := 0
	var id TimerID
	id, err := node.SchedulePeriodic(5*time.Millisecond, func(time.Time) {
		fired++
		if err := node.CancelTimer(id); err != nil {
			t.Fatalf("unexpected error when cancelling from callback: %s", err)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error when scheduling: %s", err)
	}
	if err := node.Spin(30 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error when spinning: %s", err)
	}
	if fired != 1 {
		t.Fatalf("expected exactly one firing, got %d", fired)
	}
}

func TestNodeTimerValidation(t *testing.T) {
	node := newTestNode(t, 10)
	defer node.Close()
	if _, err := node.ScheduleOnce(time.Millisecond, nil); err == nil {
		t.Fatalf("expected error for nil callback, got none")
	}
	if _, err := node.SchedulePeriodic(0, func(time.Time) {}); err == nil {
		t.Fatalf("expected error for zero period, got none")
	}
	if err := node.CancelTimer(TimerID(9999)); err == nil {
		t.Fatalf("expected error for unknown timer id, got none")
	}
}
