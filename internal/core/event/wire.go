package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

// Wire shapes for the vendor's JSON:API payloads. Field names mirror the
// Automower Connect API; normalization to the mower package happens in the
// conversion functions below.

type systemJSON struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber any    `json:"serialNumber"`
}

// flexInt tolerates numeric values quoted as JSON strings; battery events
// send batteryPercent both ways.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

type batteryJSON struct {
	BatteryPercent flexInt `json:"batteryPercent"`
}

type capabilitiesJSON struct {
	CanConfirmError bool `json:"canConfirmError"`
	Headlights      bool `json:"headlights"`
	Position        bool `json:"position"`
	StayOutZones    bool `json:"stayOutZones"`
	WorkAreas       bool `json:"workAreas"`
}

type mowerJSON struct {
	Mode               string `json:"mode"`
	Activity           string `json:"activity"`
	State              string `json:"state"`
	InactiveReason     string `json:"inactiveReason"`
	WorkAreaID         *int64 `json:"workAreaId"`
	ErrorCode          int    `json:"errorCode"`
	ErrorCodeTimestamp int64  `json:"errorCodeTimestamp"`
	IsErrorConfirmable bool   `json:"isErrorConfirmable"`
}

// Delta-event variants of the section structs. Pointer fields record which
// keys the event actually carried, so absent fields never overwrite stored
// values.

type mowerEventJSON struct {
	Mode               *string `json:"mode"`
	Activity           *string `json:"activity"`
	State              *string `json:"state"`
	InactiveReason     *string `json:"inactiveReason"`
	WorkAreaID         *int64  `json:"workAreaId"`
	ErrorCode          *int    `json:"errorCode"`
	ErrorCodeTimestamp *int64  `json:"errorCodeTimestamp"`
	IsErrorConfirmable *bool   `json:"isErrorConfirmable"`
}

type plannerEventJSON struct {
	NextStartTimestamp *int64        `json:"nextStartTimestamp"`
	Override           *overrideJSON `json:"override"`
	RestrictedReason   *string       `json:"restrictedReason"`
}

type calendarTaskJSON struct {
	Start      int    `json:"start"`
	Duration   int    `json:"duration"`
	Monday     bool   `json:"monday"`
	Tuesday    bool   `json:"tuesday"`
	Wednesday  bool   `json:"wednesday"`
	Thursday   bool   `json:"thursday"`
	Friday     bool   `json:"friday"`
	Saturday   bool   `json:"saturday"`
	Sunday     bool   `json:"sunday"`
	WorkAreaID *int64 `json:"workAreaId"`
}

type calendarJSON struct {
	Tasks []calendarTaskJSON `json:"tasks"`
}

type overrideJSON struct {
	Action string `json:"action"`
}

type plannerJSON struct {
	NextStartTimestamp int64        `json:"nextStartTimestamp"`
	Override           overrideJSON `json:"override"`
	RestrictedReason   string       `json:"restrictedReason"`
}

type metadataJSON struct {
	Connected       bool  `json:"connected"`
	StatusTimestamp int64 `json:"statusTimestamp"`
}

type positionJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type headlightJSON struct {
	Mode string `json:"mode"`
}

type settingsJSON struct {
	CuttingHeight int           `json:"cuttingHeight"`
	Headlight     headlightJSON `json:"headlight"`
}

type statisticsJSON struct {
	CuttingBladeUsageTime  int64 `json:"cuttingBladeUsageTime"`
	NumberOfChargingCycles int64 `json:"numberOfChargingCycles"`
	NumberOfCollisions     int64 `json:"numberOfCollisions"`
	TotalChargingTime      int64 `json:"totalChargingTime"`
	TotalCuttingTime       int64 `json:"totalCuttingTime"`
	TotalDriveDistance     int64 `json:"totalDriveDistance"`
	TotalRunningTime       int64 `json:"totalRunningTime"`
	TotalSearchingTime     int64 `json:"totalSearchingTime"`
}

type zoneJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type stayOutZonesJSON struct {
	Dirty bool       `json:"dirty"`
	Zones []zoneJSON `json:"zones"`
}

type workAreaJSON struct {
	WorkAreaID        int64  `json:"workAreaId"`
	Name              string `json:"name"`
	CuttingHeight     int    `json:"cuttingHeight"`
	Progress          int    `json:"progress"`
	Enabled           bool   `json:"enabled"`
	LastTimeCompleted int64  `json:"lastTimeCompleted"`
}

type messageJSON struct {
	Time      int64   `json:"time"`
	Code      int     `json:"code"`
	Severity  string  `json:"severity"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type snapshotAttrs struct {
	System       systemJSON        `json:"system"`
	Battery      batteryJSON       `json:"battery"`
	Capabilities capabilitiesJSON  `json:"capabilities"`
	Mower        mowerJSON         `json:"mower"`
	Calendar     calendarJSON      `json:"calendar"`
	Planner      plannerJSON       `json:"planner"`
	Metadata     metadataJSON      `json:"metadata"`
	Positions    []positionJSON    `json:"positions"`
	Settings     settingsJSON      `json:"settings"`
	Statistics   statisticsJSON    `json:"statistics"`
	StayOutZones *stayOutZonesJSON `json:"stayOutZones"`
	WorkAreas    []workAreaJSON    `json:"workAreas"`
}

// tsToTime converts a vendor timestamp to a time.Time. Zero means unset.
// Some endpoints report seconds and others milliseconds; values past the
// year 3000 in seconds are taken as milliseconds.
func tsToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	if ts > 32503680000 {
		return time.Unix(ts/1000, ts%1000*int64(time.Millisecond)).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

func serialToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}

// workAreaName substitutes the vendor's unnamed default area.
func workAreaName(name string) string {
	if name == "" {
		return "my_lawn"
	}
	return name
}

func toStatus(m mowerJSON) mower.Status {
	return mower.Status{
		Mode:             strings.ToLower(m.Mode),
		Activity:         strings.ToLower(m.Activity),
		State:            strings.ToLower(m.State),
		ErrorCode:        m.ErrorCode,
		ErrorKey:         mower.ErrorKey(m.ErrorCode),
		ErrorTime:        tsToTime(m.ErrorCodeTimestamp),
		InactiveReason:   strings.ToLower(m.InactiveReason),
		ErrorConfirmable: m.IsErrorConfirmable,
		WorkAreaID:       m.WorkAreaID,
	}
}

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}

func toStatusDelta(m mowerEventJSON) mower.StatusDelta {
	d := mower.StatusDelta{
		Mode:             lowerPtr(m.Mode),
		Activity:         lowerPtr(m.Activity),
		State:            lowerPtr(m.State),
		InactiveReason:   lowerPtr(m.InactiveReason),
		ErrorCode:        m.ErrorCode,
		ErrorConfirmable: m.IsErrorConfirmable,
		WorkAreaID:       m.WorkAreaID,
	}
	if m.ErrorCodeTimestamp != nil {
		t := tsToTime(*m.ErrorCodeTimestamp)
		d.ErrorTime = &t
	}
	return d
}

func toPlannerDelta(p plannerEventJSON) mower.PlannerDelta {
	d := mower.PlannerDelta{
		RestrictedReason: lowerPtr(p.RestrictedReason),
	}
	if p.NextStartTimestamp != nil {
		t := tsToTime(*p.NextStartTimestamp)
		d.NextStart = &t
	}
	if p.Override != nil {
		d.Override = &mower.Override{Action: strings.ToLower(p.Override.Action)}
	}
	return d
}

func toPlanner(p plannerJSON) mower.Planner {
	return mower.Planner{
		NextStart:        tsToTime(p.NextStartTimestamp),
		Override:         mower.Override{Action: strings.ToLower(p.Override.Action)},
		RestrictedReason: strings.ToLower(p.RestrictedReason),
	}
}

func toCalendar(tasks []calendarTaskJSON) []mower.CalendarTask {
	out := make([]mower.CalendarTask, len(tasks))
	for i, t := range tasks {
		out[i] = mower.CalendarTask{
			Start:      t.Start,
			Duration:   t.Duration,
			Monday:     t.Monday,
			Tuesday:    t.Tuesday,
			Wednesday:  t.Wednesday,
			Thursday:   t.Thursday,
			Friday:     t.Friday,
			Saturday:   t.Saturday,
			Sunday:     t.Sunday,
			WorkAreaID: t.WorkAreaID,
		}
	}
	return out
}

func toMessage(m messageJSON) mower.Message {
	return mower.Message{
		Time:      tsToTime(m.Time),
		Code:      mower.ErrorKey(m.Code),
		Severity:  strings.ToLower(m.Severity),
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
}

func toState(a snapshotAttrs) mower.State {
	st := mower.State{
		Connected:  a.Metadata.Connected,
		StatusTime: tsToTime(a.Metadata.StatusTimestamp),
		System: mower.System{
			Name:         a.System.Name,
			Model:        a.System.Model,
			SerialNumber: serialToString(a.System.SerialNumber),
		},
		Battery: int(a.Battery.BatteryPercent),
		Capabilities: mower.Capabilities{
			CanConfirmError: a.Capabilities.CanConfirmError,
			Headlights:      a.Capabilities.Headlights,
			Position:        a.Capabilities.Position,
			StayOutZones:    a.Capabilities.StayOutZones,
			WorkAreas:       a.Capabilities.WorkAreas,
		},
		Status:   toStatus(a.Mower),
		Planner:  toPlanner(a.Planner),
		Calendar: toCalendar(a.Calendar.Tasks),
		Settings: mower.Settings{
			CuttingHeight: a.Settings.CuttingHeight,
			Headlight:     mower.HeadlightMode(strings.ToLower(a.Settings.Headlight.Mode)),
		},
		Statistics: mower.Statistics(a.Statistics),
	}
	if len(a.Positions) > 0 {
		// The vendor lists the newest position first; the store keeps them
		// oldest first.
		n := len(a.Positions)
		if n > mower.MaxPositions {
			n = mower.MaxPositions
		}
		st.Positions = make([]mower.Position, n)
		for i := 0; i < n; i++ {
			p := a.Positions[n-1-i]
			st.Positions[i] = mower.Position{Latitude: p.Latitude, Longitude: p.Longitude}
		}
	}
	if a.StayOutZones != nil {
		soz := mower.StayOutZones{
			Dirty: a.StayOutZones.Dirty,
			Zones: make(map[string]mower.Zone, len(a.StayOutZones.Zones)),
		}
		for _, z := range a.StayOutZones.Zones {
			soz.Zones[z.ID] = mower.Zone{Name: z.Name, Enabled: z.Enabled}
		}
		st.StayOutZones = &soz
	}
	if a.WorkAreas != nil {
		st.WorkAreas = make(map[int64]mower.WorkArea, len(a.WorkAreas))
		for _, wa := range a.WorkAreas {
			st.WorkAreas[wa.WorkAreaID] = mower.WorkArea{
				Name:              workAreaName(wa.Name),
				CuttingHeight:     wa.CuttingHeight,
				Progress:          wa.Progress,
				Enabled:           wa.Enabled,
				LastTimeCompleted: tsToTime(wa.LastTimeCompleted),
			}
		}
	}
	return st
}
