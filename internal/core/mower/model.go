// Package mower holds the normalized data model for Automower devices and
// the Store that owns the canonical in-memory state for every known mower.
package mower

import (
	"time"
)

// Bounds on the unbounded vendor streams. The vendor keeps at most 50
// positions per mower; we apply the same cap to the message log.
const (
	MaxPositions = 50
	MaxMessages  = 50
)

// HeadlightMode is the configured headlight behaviour.
type HeadlightMode string

const (
	HeadlightAlwaysOn        HeadlightMode = "always_on"
	HeadlightAlwaysOff       HeadlightMode = "always_off"
	HeadlightEveningOnly     HeadlightMode = "evening_only"
	HeadlightEveningAndNight HeadlightMode = "evening_and_night"
)

// Mower activity values (lower-cased vendor strings).
const (
	ActivityUnknown         = "unknown"
	ActivityNotApplicable   = "not_applicable"
	ActivityMowing          = "mowing"
	ActivityGoingHome       = "going_home"
	ActivityCharging        = "charging"
	ActivityLeaving         = "leaving"
	ActivityParkedInCS      = "parked_in_cs"
	ActivityStoppedInGarden = "stopped_in_garden"
)

// Mower state values (lower-cased vendor strings).
const (
	StateFatalError   = "fatal_error"
	StateError        = "error"
	StateErrorPowerUp = "error_at_power_up"
	StateStopped      = "stopped"
	StateOff          = "off"
	StatePaused       = "paused"
	StateInOperation  = "in_operation"
	StateRestricted   = "restricted"
	StateUnknown      = "unknown"
)

// System identifies the mower hardware.
type System struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// Capabilities lists which optional features the mower supports.
type Capabilities struct {
	CanConfirmError bool `json:"can_confirm_error"`
	Headlights      bool `json:"headlights"`
	Position        bool `json:"position"`
	StayOutZones    bool `json:"stay_out_zones"`
	WorkAreas       bool `json:"work_areas"`
}

// Status is the mower's current operating status.
type Status struct {
	Mode             string    `json:"mode"`
	Activity         string    `json:"activity"`
	State            string    `json:"state"`
	ErrorCode        int       `json:"error_code"`
	ErrorKey         string    `json:"error_key,omitempty"`
	ErrorTime        time.Time `json:"error_time,omitzero"`
	InactiveReason   string    `json:"inactive_reason"`
	ErrorConfirmable bool      `json:"error_confirmable"`
	WorkAreaID       *int64    `json:"work_area_id,omitempty"`
}

// Override is a manual override of the planner schedule.
type Override struct {
	Action string `json:"action"`
}

// Planner describes the next planned mowing session.
type Planner struct {
	NextStart        time.Time `json:"next_start,omitzero"`
	Override         Override  `json:"override"`
	RestrictedReason string    `json:"restricted_reason"`
}

// CalendarTask is one scheduled mowing task. Start and Duration are in
// minutes; the weekday flags select the days the task runs.
type CalendarTask struct {
	Start      int    `json:"start"`
	Duration   int    `json:"duration"`
	Monday     bool   `json:"monday"`
	Tuesday    bool   `json:"tuesday"`
	Wednesday  bool   `json:"wednesday"`
	Thursday   bool   `json:"thursday"`
	Friday     bool   `json:"friday"`
	Saturday   bool   `json:"saturday"`
	Sunday     bool   `json:"sunday"`
	WorkAreaID *int64 `json:"work_area_id,omitempty"`
}

// Position is a single GPS fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Settings holds the adjustable mower settings.
type Settings struct {
	CuttingHeight int           `json:"cutting_height"`
	Headlight     HeadlightMode `json:"headlight"`
}

// Statistics holds the lifetime counters reported by the mower. Times are
// seconds, distance is meters.
type Statistics struct {
	CuttingBladeUsageTime  int64 `json:"cutting_blade_usage_time"`
	NumberOfChargingCycles int64 `json:"number_of_charging_cycles"`
	NumberOfCollisions     int64 `json:"number_of_collisions"`
	TotalChargingTime      int64 `json:"total_charging_time"`
	TotalCuttingTime       int64 `json:"total_cutting_time"`
	TotalDriveDistance     int64 `json:"total_drive_distance"`
	TotalRunningTime       int64 `json:"total_running_time"`
	TotalSearchingTime     int64 `json:"total_searching_time"`
}

// Zone is a single stay-out zone.
type Zone struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// StayOutZones maps zone id to zone. Dirty means the mower has not yet
// synchronized a zone change.
type StayOutZones struct {
	Dirty bool            `json:"dirty"`
	Zones map[string]Zone `json:"zones"`
}

// WorkArea is a single work area on the lawn.
type WorkArea struct {
	Name              string    `json:"name"`
	CuttingHeight     int       `json:"cutting_height"`
	Progress          int       `json:"progress"`
	Enabled           bool      `json:"enabled"`
	LastTimeCompleted time.Time `json:"last_time_completed,omitzero"`
}

// Message is one diagnostic or error message from the mower.
type Message struct {
	Time      time.Time `json:"time,omitzero"`
	Code      string    `json:"code"`
	Severity  string    `json:"severity"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// State is the full normalized state of one mower.
//
// Positions are ordered oldest first, most recent last, capped at
// MaxPositions. Messages are ordered most recent first, capped at
// MaxMessages.
type State struct {
	Connected    bool                `json:"connected"`
	StatusTime   time.Time           `json:"status_time,omitzero"`
	System       System              `json:"system"`
	Battery      int                 `json:"battery"`
	Capabilities Capabilities        `json:"capabilities"`
	Status       Status              `json:"status"`
	Planner      Planner             `json:"planner"`
	Calendar     []CalendarTask      `json:"calendar"`
	Positions    []Position          `json:"positions"`
	Settings     Settings            `json:"settings"`
	Statistics   Statistics          `json:"statistics"`
	StayOutZones *StayOutZones       `json:"stay_out_zones,omitempty"`
	WorkAreas    map[int64]WorkArea  `json:"work_areas,omitempty"`
	Messages     []Message           `json:"messages"`
}

// Clone returns a deep copy safe to hand outside the store.
func (s State) Clone() State {
	cp := s
	if s.Calendar != nil {
		cp.Calendar = make([]CalendarTask, len(s.Calendar))
		copy(cp.Calendar, s.Calendar)
		for i, t := range s.Calendar {
			if t.WorkAreaID != nil {
				id := *t.WorkAreaID
				cp.Calendar[i].WorkAreaID = &id
			}
		}
	}
	if s.Positions != nil {
		cp.Positions = make([]Position, len(s.Positions))
		copy(cp.Positions, s.Positions)
	}
	if s.Messages != nil {
		cp.Messages = make([]Message, len(s.Messages))
		copy(cp.Messages, s.Messages)
	}
	if s.StayOutZones != nil {
		soz := StayOutZones{Dirty: s.StayOutZones.Dirty}
		if s.StayOutZones.Zones != nil {
			soz.Zones = make(map[string]Zone, len(s.StayOutZones.Zones))
			for k, v := range s.StayOutZones.Zones {
				soz.Zones[k] = v
			}
		}
		cp.StayOutZones = &soz
	}
	if s.WorkAreas != nil {
		cp.WorkAreas = make(map[int64]WorkArea, len(s.WorkAreas))
		for k, v := range s.WorkAreas {
			cp.WorkAreas[k] = v
		}
	}
	if s.Status.WorkAreaID != nil {
		id := *s.Status.WorkAreaID
		cp.Status.WorkAreaID = &id
	}
	return cp
}

// WorkAreaName resolves the name of the work area the mower is currently in.
func (s State) WorkAreaName() string {
	if !s.Capabilities.WorkAreas || s.Status.WorkAreaID == nil {
		return ""
	}
	wa, ok := s.WorkAreas[*s.Status.WorkAreaID]
	if !ok {
		return ""
	}
	return wa.Name
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func statusEqual(a, b Status) bool {
	return a.Mode == b.Mode &&
		a.Activity == b.Activity &&
		a.State == b.State &&
		a.ErrorCode == b.ErrorCode &&
		a.ErrorKey == b.ErrorKey &&
		a.ErrorTime.Equal(b.ErrorTime) &&
		a.InactiveReason == b.InactiveReason &&
		a.ErrorConfirmable == b.ErrorConfirmable &&
		int64PtrEqual(a.WorkAreaID, b.WorkAreaID)
}

func plannerEqual(a, b Planner) bool {
	return a.NextStart.Equal(b.NextStart) &&
		a.Override == b.Override &&
		a.RestrictedReason == b.RestrictedReason
}

func taskEqual(a, b CalendarTask) bool {
	wa, wb := a.WorkAreaID, b.WorkAreaID
	a.WorkAreaID, b.WorkAreaID = nil, nil
	return a == b && int64PtrEqual(wa, wb)
}

func calendarEqual(a, b []CalendarTask) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !taskEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
