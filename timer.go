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
	"container/heap"
	"time"
)

// TimerID identifies a scheduled timer
type TimerID uint64

// TimerFunc runs on the spinning goroutine when its timer fires. It must
// not call Spin or SpinOnce.
type TimerFunc func(now time.Time)

type timerEntry struct {
	id        TimerID
	when      time.Time
	period    time.Duration // zero for one-shot timers
	fn        TimerFunc
	cancelled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*timerEntry))
}

func (h *timerHeap) Pop() any {
	old := *h
	last := len(old) - 1
	entry := old[last]
	old[last] = nil
	*h = old[:last]
	return entry
}

// timerQueue orders pending timers by deadline. Cancellation only marks
// the entry; stale entries are dropped when they reach the top of the
// heap.
type timerQueue struct {
	heap   timerHeap
	byID   map[TimerID]*timerEntry
	nextID TimerID
}

func newTimerQueue() *timerQueue {
	return &timerQueue{
		byID: make(map[TimerID]*timerEntry),
	}
}

func (q *timerQueue) schedule(when time.Time, period time.Duration, fn TimerFunc) TimerID {
	q.nextID++
	entry := &timerEntry{
		id:     q.nextID,
		when:   when,
		period: period,
		fn:     fn,
	}
	q.byID[entry.id] = entry
	heap.Push(&q.heap, entry)
	return entry.id
}

func (q *timerQueue) cancel(id TimerID) bool {
	entry, ok := q.byID[id]
	if !ok {
		return false
	}
	entry.cancelled = true
	delete(q.byID, id)
	return true
}

// next returns the earliest pending deadline
func (q *timerQueue) next() (time.Time, bool) {
	for len(q.heap) > 0 {
		top := q.heap[0]
		if top.cancelled {
			heap.Pop(&q.heap)
			continue
		}
		return top.when, true
	}
	return time.Time{}, false
}

// popDue removes and returns one timer due at now, nil when none are
func (q *timerQueue) popDue(now time.Time) *timerEntry {
	for len(q.heap) > 0 {
		top := q.heap[0]
		if top.cancelled {
			heap.Pop(&q.heap)
			continue
		}
		if top.when.After(now) {
			return nil
		}
		heap.Pop(&q.heap)
		return top
	}
	return nil
}

// rearm pushes a periodic timer back with its next deadline
func (q *timerQueue) rearm(entry *timerEntry) {
	heap.Push(&q.heap, entry)
}

func (q *timerQueue) forget(id TimerID) {
	delete(q.byID, id)
}

func (q *timerQueue) pending() int {
	return len(q.byID)
}
