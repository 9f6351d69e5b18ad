package session

import (
	"testing"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

func TestRegistrySubscribeNotify(t *testing.T) {
	r := NewRegistry(testLogger())

	var got []Change
	r.Subscribe(func(ch Change) { got = append(got, ch) })

	r.Notify(Change{MowerID: "m1", Paths: []string{"battery"}})
	if len(got) != 1 || got[0].MowerID != "m1" {
		t.Fatalf("got = %+v, want one change for m1", got)
	}
}

func TestRegistryUnsubscribe(t *testing.T) {
	r := NewRegistry(testLogger())

	calls := 0
	h := r.Subscribe(func(Change) { calls++ })
	r.Notify(Change{MowerID: "m1"})
	r.Unsubscribe(h)
	r.Notify(Change{MowerID: "m1"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no delivery after unsubscribe)", calls)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistryPanicIsolation(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Subscribe(func(Change) { panic("boom") })
	survived := 0
	r.Subscribe(func(Change) { survived++ })

	r.Notify(Change{MowerID: "m1"})
	r.Notify(Change{MowerID: "m1"})

	if survived != 2 {
		t.Errorf("survived = %d, want 2 (panicking callback must not block the rest)", survived)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2 (panicking callback stays registered)", r.Len())
	}
}

func TestRegistryNotifyCopiesState(t *testing.T) {
	r := NewRegistry(testLogger())

	var first, second mower.State
	r.Subscribe(func(ch Change) {
		first = ch.State
		first.Calendar[0].Start = 999 // mutate our copy
	})
	r.Subscribe(func(ch Change) { second = ch.State })

	st := mower.State{Calendar: []mower.CalendarTask{{Start: 60}}}
	r.Notify(Change{MowerID: "m1", State: st})

	if second.Calendar[0].Start != 60 {
		t.Errorf("second subscriber saw %d, want 60 (each callback gets its own copy)", second.Calendar[0].Start)
	}
	if st.Calendar[0].Start != 60 {
		t.Error("subscriber mutation leaked into the caller's state")
	}
}
