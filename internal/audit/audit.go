/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package audit implements the engine's in-memory audit trail (spec's
// ambient-stack expansion, C8): a ring-buffered log of request/token/
// approval/provisioning lifecycle events, exposed for inspection by the
// composition root's diagnostics surface.
package audit

import (
	"sync"
	"time"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

// EventType names a point in the activation lifecycle worth recording.
type EventType string

const (
	EventRequestCreated     EventType = "request_created"
	EventTokenIssued        EventType = "token_issued"
	EventTokenVerified      EventType = "token_verified"
	EventTokenRejected      EventType = "token_rejected"
	EventActivationApplied  EventType = "activation_applied"
	EventApprovalApplied    EventType = "approval_applied"
	EventProvisioningFailed EventType = "provisioning_failed"
)

// Event is a single audit record.
type Event struct {
	Time      time.Time
	Type      EventType
	ActorID   string
	RequestID accessmodel.ActivationId
	Resource  string
	Role      string
	Detail    string
}

// Log is a fixed-capacity, thread-safe ring buffer of Events. Once full,
// the oldest event is evicted to make room for the newest; the audit trail
// is a diagnostics aid, not a durable compliance record (the engine
// persists no state of its own, per spec §1).
type Log struct {
	mu       sync.Mutex
	clock    accessmodel.Clock
	capacity int
	events   []Event
	next     int
	size     int
}

// NewLog constructs a ring-buffered Log holding up to capacity events.
func NewLog(capacity int, clock accessmodel.Clock) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{clock: clock, capacity: capacity, events: make([]Event, capacity)}
}

// Record appends an event, evicting the oldest if the log is at capacity.
func (l *Log) Record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.clock.Now()
	}
	l.events[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.size < l.capacity {
		l.size++
	}
}

// Recent returns up to the last n events, oldest first.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > l.size {
		n = l.size
	}

	out := make([]Event, n)
	start := (l.next - n + l.capacity) % l.capacity
	for i := 0; i < n; i++ {
		out[i] = l.events[(start+i)%l.capacity]
	}
	return out
}
