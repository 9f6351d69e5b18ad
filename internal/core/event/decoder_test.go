package event

import (
	"errors"
	"testing"
	"time"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

func TestDecodePong(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("  ")} {
		ev, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%q) err = %v", raw, err)
		}
		if _, ok := ev.(Pong); !ok {
			t.Errorf("Decode(%q) = %T, want Pong", raw, ev)
		}
	}
}

func TestDecodeReady(t *testing.T) {
	ev, err := Decode([]byte(`{"ready":true,"connectionId":"conn-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	ready, ok := ev.(Ready)
	if !ok {
		t.Fatalf("ev = %T, want Ready", ev)
	}
	if ready.ConnectionID != "conn-1" {
		t.Errorf("ConnectionID = %q, want conn-1", ready.ConnectionID)
	}
}

func TestDecodeBatteryEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"battery-event-v2","attributes":{"battery":{"batteryPercent":77}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up, ok := ev.(Update)
	if !ok {
		t.Fatalf("ev = %T, want Update", ev)
	}
	if up.MowerID != "m1" {
		t.Errorf("MowerID = %q, want m1", up.MowerID)
	}
	if up.Delta.Battery == nil || *up.Delta.Battery != 77 {
		t.Errorf("Delta.Battery = %v, want 77", up.Delta.Battery)
	}
	if up.Delta.Status != nil || up.Delta.Position != nil {
		t.Error("battery event must not populate other delta fields")
	}
}

func TestDecodeBatteryEventQuotedPercent(t *testing.T) {
	// The vendor occasionally quotes the percentage.
	raw := []byte(`{"id":"m1","type":"battery-event-v2","attributes":{"battery":{"batteryPercent":"99"}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	if up.Delta.Battery == nil || *up.Delta.Battery != 99 {
		t.Errorf("Delta.Battery = %v, want 99", up.Delta.Battery)
	}
}

func TestDecodeMowerEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"mower-event-v2","attributes":{"mower":{
		"mode":"MAIN_AREA","activity":"MOWING","state":"IN_OPERATION",
		"errorCode":9,"errorCodeTimestamp":1685963660000,"isErrorConfirmable":true,
		"inactiveReason":"NONE","workAreaId":123456}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	st := up.Delta.Status
	if st == nil {
		t.Fatal("Delta.Status = nil")
	}
	if st.Mode == nil || *st.Mode != "main_area" {
		t.Errorf("Mode = %v, want main_area", st.Mode)
	}
	if st.Activity == nil || *st.Activity != "mowing" {
		t.Errorf("Activity = %v, want mowing", st.Activity)
	}
	if st.State == nil || *st.State != "in_operation" {
		t.Errorf("State = %v, want in_operation", st.State)
	}
	if st.ErrorCode == nil || *st.ErrorCode != 9 {
		t.Errorf("ErrorCode = %v, want 9", st.ErrorCode)
	}
	if st.ErrorConfirmable == nil || !*st.ErrorConfirmable {
		t.Errorf("ErrorConfirmable = %v, want true", st.ErrorConfirmable)
	}
	if st.WorkAreaID == nil || *st.WorkAreaID != 123456 {
		t.Errorf("WorkAreaID = %v, want 123456", st.WorkAreaID)
	}
	want := time.Date(2023, 6, 5, 11, 14, 20, 0, time.UTC)
	if st.ErrorTime == nil || !st.ErrorTime.Equal(want) {
		t.Errorf("ErrorTime = %v, want %v", st.ErrorTime, want)
	}
}

func TestDecodeMowerEventPartial(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"mower-event-v2","attributes":{"mower":{"mode":"DEMO"}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	st := ev.(Update).Delta.Status
	if st == nil {
		t.Fatal("Delta.Status = nil")
	}
	if st.Mode == nil || *st.Mode != "demo" {
		t.Errorf("Mode = %v, want demo", st.Mode)
	}
	// Absent keys must decode as nil so the merge leaves them alone.
	if st.Activity != nil || st.State != nil || st.ErrorCode != nil || st.ErrorTime != nil ||
		st.InactiveReason != nil || st.ErrorConfirmable != nil || st.WorkAreaID != nil {
		t.Errorf("absent fields not nil: %+v", st)
	}
}

func TestDecodeHeadlightsEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"headlights-event-v2","attributes":{"headLight":{"mode":"EVENING_ONLY"}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	if up.Delta.Headlight == nil || *up.Delta.Headlight != mower.HeadlightEveningOnly {
		t.Errorf("Delta.Headlight = %v, want evening_only", up.Delta.Headlight)
	}
}

func TestDecodeCuttingHeightEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"cuttingHeight-event-v2","attributes":{"cuttingHeight":{"height":6}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	if up.Delta.CuttingHeight == nil || *up.Delta.CuttingHeight != 6 {
		t.Errorf("Delta.CuttingHeight = %v, want 6", up.Delta.CuttingHeight)
	}
}

func TestDecodePositionEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"position-event-v2","attributes":{"position":{"latitude":57.7,"longitude":14.16}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	if up.Delta.Position == nil {
		t.Fatal("Delta.Position = nil")
	}
	if up.Delta.Position.Latitude != 57.7 || up.Delta.Position.Longitude != 14.16 {
		t.Errorf("Position = %+v", up.Delta.Position)
	}
}

func TestDecodePlannerEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"planner-event-v2","attributes":{"planner":{
		"nextStartTimestamp":0,"override":{"action":"FORCE_MOW"},"restrictedReason":"WEEK_SCHEDULE"}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	p := up.Delta.Planner
	if p == nil {
		t.Fatal("Delta.Planner = nil")
	}
	if p.NextStart == nil || !p.NextStart.IsZero() {
		t.Errorf("NextStart = %v, want present zero time for timestamp 0", p.NextStart)
	}
	if p.Override == nil || p.Override.Action != "force_mow" {
		t.Errorf("Override = %+v, want force_mow", p.Override)
	}
	if p.RestrictedReason == nil || *p.RestrictedReason != "week_schedule" {
		t.Errorf("RestrictedReason = %v, want week_schedule", p.RestrictedReason)
	}
}

func TestDecodePlannerEventPartial(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"planner-event-v2","attributes":{"planner":{"restrictedReason":"PARK_OVERRIDE"}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	p := ev.(Update).Delta.Planner
	if p == nil {
		t.Fatal("Delta.Planner = nil")
	}
	if p.RestrictedReason == nil || *p.RestrictedReason != "park_override" {
		t.Errorf("RestrictedReason = %v, want park_override", p.RestrictedReason)
	}
	if p.NextStart != nil || p.Override != nil {
		t.Errorf("absent fields not nil: %+v", p)
	}
}

func TestDecodeCalendarEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"calendar-event-v2","attributes":{"calendar":{"tasks":[
		{"start":420,"duration":600,"monday":true,"friday":true,"workAreaId":7}]}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	if len(up.Delta.Calendar) != 1 {
		t.Fatalf("Calendar = %v, want one task", up.Delta.Calendar)
	}
	task := up.Delta.Calendar[0]
	if task.Start != 420 || task.Duration != 600 || !task.Monday || !task.Friday || task.Tuesday {
		t.Errorf("task = %+v", task)
	}
	if task.WorkAreaID == nil || *task.WorkAreaID != 7 {
		t.Errorf("WorkAreaID = %v, want 7", task.WorkAreaID)
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"message-event-v2","attributes":{"message":{
		"time":1685963660,"code":9,"severity":"WARNING","latitude":57.7,"longitude":14.16}}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := ev.(Update)
	m := up.Delta.Message
	if m == nil {
		t.Fatal("Delta.Message = nil")
	}
	if m.Code != "trapped" || m.Severity != "warning" {
		t.Errorf("message = %+v", m)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"id":"m1"}`},
		{"missing id", `{"type":"battery-event-v2","attributes":{}}`},
		{"unknown type", `{"id":"m1","type":"lava-event-v9","attributes":{}}`},
		{"bad attributes", `{"id":"m1","type":"battery-event-v2","attributes":{"battery":{"batteryPercent":"high"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("err = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{"id":"m1","type":"mower","attributes":{
		"system":{"name":"Front Lawn","model":"450X","serialNumber":1234},
		"battery":{"batteryPercent":80},
		"capabilities":{"workAreas":true,"position":true},
		"mower":{"mode":"MAIN_AREA","activity":"CHARGING","state":"RESTRICTED","errorCode":0},
		"planner":{"nextStartTimestamp":1685963660000,"override":{"action":""},"restrictedReason":"WEEK_SCHEDULE"},
		"metadata":{"connected":true,"statusTimestamp":1685963660000},
		"positions":[{"latitude":3,"longitude":3},{"latitude":2,"longitude":2},{"latitude":1,"longitude":1}],
		"settings":{"cuttingHeight":4,"headlight":{"mode":"EVENING_ONLY"}},
		"statistics":{"numberOfChargingCycles":231,"totalRunningTime":4380000},
		"stayOutZones":{"dirty":false,"zones":[{"id":"z1","name":"Flower bed","enabled":true}]},
		"workAreas":[{"workAreaId":0,"name":"","cuttingHeight":50},{"workAreaId":7,"name":"Back yard","cuttingHeight":40}]}}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	snap, ok := ev.(Snapshot)
	if !ok {
		t.Fatalf("ev = %T, want Snapshot", ev)
	}
	st := snap.State

	if st.System.SerialNumber != "1234" {
		t.Errorf("SerialNumber = %q, want 1234 (numeric serial normalized)", st.System.SerialNumber)
	}
	if !st.Connected || st.Battery != 80 {
		t.Errorf("connected/battery = %v/%d", st.Connected, st.Battery)
	}
	if st.Status.ErrorKey != "" {
		t.Errorf("ErrorKey = %q, want empty for code 0", st.Status.ErrorKey)
	}

	// Vendor lists newest first; normalized order is oldest first.
	if len(st.Positions) != 3 || st.Positions[0].Latitude != 1 || st.Positions[2].Latitude != 3 {
		t.Errorf("Positions = %+v, want oldest first", st.Positions)
	}

	if st.Settings.Headlight != mower.HeadlightEveningOnly {
		t.Errorf("Headlight = %q", st.Settings.Headlight)
	}
	if st.Statistics.NumberOfChargingCycles != 231 {
		t.Errorf("NumberOfChargingCycles = %d", st.Statistics.NumberOfChargingCycles)
	}

	if st.StayOutZones == nil || st.StayOutZones.Zones["z1"].Name != "Flower bed" {
		t.Errorf("StayOutZones = %+v", st.StayOutZones)
	}

	// Unnamed default work area gets the vendor's placeholder name.
	if st.WorkAreas[0].Name != "my_lawn" || st.WorkAreas[7].Name != "Back yard" {
		t.Errorf("WorkAreas = %+v", st.WorkAreas)
	}
}

func TestDecodeMowerList(t *testing.T) {
	raw := []byte(`{"data":[
		{"type":"mower","id":"m1","attributes":{"battery":{"batteryPercent":60}}},
		{"type":"other","id":"x","attributes":{}},
		{"type":"mower","id":"m2","attributes":{"battery":{"batteryPercent":90}}}]}`)

	snaps, err := DecodeMowerList(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("len(snaps) = %d, want 2 (non-mower resources skipped)", len(snaps))
	}
	if snaps[0].MowerID != "m1" || snaps[0].State.Battery != 60 {
		t.Errorf("snaps[0] = %+v", snaps[0])
	}
	if snaps[1].MowerID != "m2" || snaps[1].State.Battery != 90 {
		t.Errorf("snaps[1] = %+v", snaps[1])
	}
}
