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

package audit

import (
	"testing"
	"time"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

func TestRecentReturnsOldestFirstWithinCapacity(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLog(3, clock)

	l.Record(Event{Type: EventRequestCreated, Detail: "1"})
	l.Record(Event{Type: EventRequestCreated, Detail: "2"})
	l.Record(Event{Type: EventRequestCreated, Detail: "3"})

	got := l.Recent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Detail != "1" || got[2].Detail != "3" {
		t.Fatalf("unexpected ordering: %+v", got)
	}
}

func TestRecordEvictsOldestPastCapacity(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLog(2, clock)

	l.Record(Event{Detail: "1"})
	l.Record(Event{Detail: "2"})
	l.Record(Event{Detail: "3"})

	got := l.Recent(10)
	if len(got) != 2 {
		t.Fatalf("expected 2 events after eviction, got %d", len(got))
	}
	if got[0].Detail != "2" || got[1].Detail != "3" {
		t.Fatalf("unexpected ordering after eviction: %+v", got)
	}
}

func TestRecordStampsTimeFromClockWhenZero(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLog(1, clock)
	l.Record(Event{Detail: "x"})

	got := l.Recent(1)
	if !got[0].Time.Equal(clock.T) {
		t.Fatalf("got %v, want %v", got[0].Time, clock.T)
	}
}
