package mower

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Delta is a partial update for one mower, decoded from a websocket event.
// Nil fields are untouched; non-nil fields replace or extend the
// corresponding section of the state.
type Delta struct {
	Battery       *int
	Status        *StatusDelta
	Planner       *PlannerDelta
	Calendar      []CalendarTask // full replacement task list when non-nil
	CuttingHeight *int
	Headlight     *HeadlightMode
	Position      *Position // appended to the position history
	Message       *Message  // prepended to the message log
}

// StatusDelta carries only the status fields present in the event. Absent
// fields stay nil and leave the stored value untouched; the vendor sends
// section events with any subset of these set.
type StatusDelta struct {
	Mode             *string
	Activity         *string
	State            *string
	ErrorCode        *int
	ErrorTime        *time.Time
	InactiveReason   *string
	ErrorConfirmable *bool
	WorkAreaID       *int64
}

// PlannerDelta carries only the planner fields present in the event.
type PlannerDelta struct {
	NextStart        *time.Time
	Override         *Override
	RestrictedReason *string
}

// Store owns the canonical mapping from mower id to normalized state.
//
// A mower becomes visible only once a full snapshot has been applied; deltas
// for unseen mowers fail with ErrUnknownMower. All state handed out is a
// deep copy, so callers can never observe concurrent mutation.
type Store struct {
	mu     sync.RWMutex
	mowers map[string]*State
	log    *slog.Logger
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore(log *slog.Logger) *Store {
	return &Store{
		mowers: make(map[string]*State),
		log:    log,
		now:    time.Now,
	}
}

// ApplySnapshot replaces the entire record for id and marks it connected.
// It returns the changed field paths relative to the previous record (every
// path for a new mower) and the previous state, if any, for diffing.
func (s *Store) ApplySnapshot(id string, st State) (changed []string, prev *State) {
	cp := st.Clone()
	cp.Connected = true
	if cp.StatusTime.IsZero() {
		cp.StatusTime = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.mowers[id]; ok {
		p := old.Clone()
		prev = &p
		changed = diffStates(p, cp)
	} else {
		changed = allPaths(cp)
	}
	s.mowers[id] = &cp
	return changed, prev
}

// ApplyDelta merges a partial update into the record for id, leaving
// unspecified fields untouched. It returns the set of field paths whose
// value actually changed; a no-op delta returns an empty set. Out-of-order
// deltas are not reordered: last applied wins per field.
func (s *Store) ApplyDelta(id string, d Delta) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.mowers[id]
	if !ok {
		return nil, fmt.Errorf("apply delta for %q: %w", id, ErrUnknownMower)
	}

	var changed []string

	if d.Battery != nil && st.Battery != *d.Battery {
		st.Battery = *d.Battery
		changed = append(changed, "battery")
	}
	if d.Status != nil {
		changed = append(changed, s.mergeStatus(st, *d.Status)...)
	}
	if d.Planner != nil {
		changed = append(changed, mergePlanner(st, *d.Planner)...)
	}
	if d.Calendar != nil && !calendarEqual(st.Calendar, d.Calendar) {
		st.Calendar = append([]CalendarTask(nil), d.Calendar...)
		changed = append(changed, "calendar")
	}
	if d.CuttingHeight != nil && st.Settings.CuttingHeight != *d.CuttingHeight {
		st.Settings.CuttingHeight = *d.CuttingHeight
		changed = append(changed, "settings.cutting_height")
	}
	if d.Headlight != nil && st.Settings.Headlight != *d.Headlight {
		st.Settings.Headlight = *d.Headlight
		changed = append(changed, "settings.headlight")
	}
	if d.Position != nil {
		st.Positions = append(st.Positions, *d.Position)
		if len(st.Positions) > MaxPositions {
			st.Positions = st.Positions[len(st.Positions)-MaxPositions:]
		}
		changed = append(changed, "positions")
	}
	if d.Message != nil {
		st.Messages = append([]Message{*d.Message}, st.Messages...)
		if len(st.Messages) > MaxMessages {
			st.Messages = st.Messages[:MaxMessages]
		}
		changed = append(changed, "messages")
	}

	if len(changed) > 0 {
		st.StatusTime = s.now()
	}
	return changed, nil
}

// mergeStatus folds only the fields the event carried; everything else
// keeps its stored value.
func (s *Store) mergeStatus(st *State, d StatusDelta) []string {
	var changed []string
	cur := &st.Status
	if d.Mode != nil && cur.Mode != *d.Mode {
		cur.Mode = *d.Mode
		changed = append(changed, "mower.mode")
	}
	if d.Activity != nil && cur.Activity != *d.Activity {
		cur.Activity = *d.Activity
		changed = append(changed, "mower.activity")
	}
	if d.State != nil && cur.State != *d.State {
		cur.State = *d.State
		changed = append(changed, "mower.state")
	}
	errChanged := false
	if d.ErrorCode != nil && cur.ErrorCode != *d.ErrorCode {
		cur.ErrorCode = *d.ErrorCode
		cur.ErrorKey = ErrorKey(*d.ErrorCode)
		errChanged = true
	}
	if d.ErrorTime != nil && !cur.ErrorTime.Equal(*d.ErrorTime) {
		cur.ErrorTime = *d.ErrorTime
		errChanged = true
	}
	if d.ErrorConfirmable != nil && cur.ErrorConfirmable != *d.ErrorConfirmable {
		cur.ErrorConfirmable = *d.ErrorConfirmable
		errChanged = true
	}
	if errChanged {
		changed = append(changed, "mower.error")
	}
	if d.InactiveReason != nil && cur.InactiveReason != *d.InactiveReason {
		cur.InactiveReason = *d.InactiveReason
		changed = append(changed, "mower.inactive_reason")
	}
	if d.WorkAreaID != nil && !int64PtrEqual(cur.WorkAreaID, d.WorkAreaID) {
		id := *d.WorkAreaID
		cur.WorkAreaID = &id
		if _, ok := st.WorkAreas[id]; !ok && st.Capabilities.WorkAreas {
			// Unknown work area referenced by the event; keep the id but
			// don't invent an area record.
			s.log.Debug("delta references unknown work area", "work_area_id", id)
		}
		changed = append(changed, "mower.work_area")
	}
	return changed
}

func mergePlanner(st *State, d PlannerDelta) []string {
	p := &st.Planner
	dirty := false
	if d.NextStart != nil && !p.NextStart.Equal(*d.NextStart) {
		p.NextStart = *d.NextStart
		dirty = true
	}
	if d.Override != nil && p.Override != *d.Override {
		p.Override = *d.Override
		dirty = true
	}
	if d.RestrictedReason != nil && p.RestrictedReason != *d.RestrictedReason {
		p.RestrictedReason = *d.RestrictedReason
		dirty = true
	}
	if !dirty {
		return nil
	}
	return []string{"planner"}
}

// MarkDisconnected sets the connectivity flag false for id without touching
// any other field. It reports whether the flag actually changed.
func (s *Store) MarkDisconnected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.mowers[id]
	if !ok || !st.Connected {
		return false
	}
	st.Connected = false
	return true
}

// MarkAllDisconnected marks every known mower disconnected and returns the
// ids whose connectivity flag changed.
func (s *Store) MarkAllDisconnected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, st := range s.mowers {
		if st.Connected {
			st.Connected = false
			ids = append(ids, id)
		}
	}
	return ids
}

// Remove deletes the record for id. Only called for explicit removal events,
// never on connection loss.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mowers[id]; !ok {
		return false
	}
	delete(s.mowers, id)
	return true
}

// Get returns a deep copy of the state for id.
func (s *Store) Get(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.mowers[id]
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

// All returns a deep copy of the whole mapping, safe to hand to callbacks.
func (s *Store) All() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]State, len(s.mowers))
	for id, st := range s.mowers {
		out[id] = st.Clone()
	}
	return out
}

// IDs returns the ids of all known mowers.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.mowers))
	for id := range s.mowers {
		ids = append(ids, id)
	}
	return ids
}

func allPaths(st State) []string {
	paths := []string{
		"connected", "system", "battery", "capabilities", "mower",
		"planner", "calendar", "positions", "settings", "statistics", "messages",
	}
	if st.StayOutZones != nil {
		paths = append(paths, "stay_out_zones")
	}
	if st.WorkAreas != nil {
		paths = append(paths, "work_areas")
	}
	return paths
}

func diffStates(prev, cur State) []string {
	var changed []string
	if prev.Connected != cur.Connected {
		changed = append(changed, "connected")
	}
	if prev.System != cur.System {
		changed = append(changed, "system")
	}
	if prev.Battery != cur.Battery {
		changed = append(changed, "battery")
	}
	if prev.Capabilities != cur.Capabilities {
		changed = append(changed, "capabilities")
	}
	if !statusEqual(prev.Status, cur.Status) {
		changed = append(changed, "mower")
	}
	if !plannerEqual(prev.Planner, cur.Planner) {
		changed = append(changed, "planner")
	}
	if !calendarEqual(prev.Calendar, cur.Calendar) {
		changed = append(changed, "calendar")
	}
	if !positionsEqual(prev.Positions, cur.Positions) {
		changed = append(changed, "positions")
	}
	if prev.Settings != cur.Settings {
		changed = append(changed, "settings")
	}
	if prev.Statistics != cur.Statistics {
		changed = append(changed, "statistics")
	}
	if !stayOutZonesEqual(prev.StayOutZones, cur.StayOutZones) {
		changed = append(changed, "stay_out_zones")
	}
	if !workAreasEqual(prev.WorkAreas, cur.WorkAreas) {
		changed = append(changed, "work_areas")
	}
	if !messagesEqual(prev.Messages, cur.Messages) {
		changed = append(changed, "messages")
	}
	return changed
}

func positionsEqual(a, b []Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func messagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Code != b[i].Code || a[i].Severity != b[i].Severity ||
			!a[i].Time.Equal(b[i].Time) ||
			a[i].Latitude != b[i].Latitude || a[i].Longitude != b[i].Longitude {
			return false
		}
	}
	return true
}

func stayOutZonesEqual(a, b *StayOutZones) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Dirty != b.Dirty || len(a.Zones) != len(b.Zones) {
		return false
	}
	for k, v := range a.Zones {
		if b.Zones[k] != v {
			return false
		}
	}
	return true
}

func workAreasEqual(a, b map[int64]WorkArea) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || w.Name != v.Name || w.CuttingHeight != v.CuttingHeight ||
			w.Progress != v.Progress || w.Enabled != v.Enabled ||
			!w.LastTimeCompleted.Equal(v.LastTimeCompleted) {
			return false
		}
	}
	return true
}
