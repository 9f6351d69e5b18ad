// Package event decodes raw Automower Connect payloads into typed events.
// Decoding is pure: no state, no I/O. Snapshot-shaped and delta-shaped
// payloads are told apart by the vendor's type discriminator.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

// Websocket v2 event discriminators.
const (
	typeBattery       = "battery-event-v2"
	typeCalendar      = "calendar-event-v2"
	typeCuttingHeight = "cuttingHeight-event-v2"
	typeHeadlights    = "headlights-event-v2"
	typeMessage       = "message-event-v2"
	typeMower         = "mower-event-v2"
	typePlanner       = "planner-event-v2"
	typePosition      = "position-event-v2"

	// REST resources of this type decode as full snapshots.
	typeSnapshot = "mower"
)

// Event is a decoded inbound message.
type Event interface{ isEvent() }

// Snapshot is a complete replacement state for one mower.
type Snapshot struct {
	MowerID string
	State   mower.State
}

// Update is a partial state change for one mower.
type Update struct {
	MowerID string
	Delta   mower.Delta
}

// Ready is the server's stream-established handshake message.
type Ready struct {
	ConnectionID string
}

// Pong is the server's empty liveness frame.
type Pong struct{}

func (Snapshot) isEvent() {}
func (Update) isEvent()   {}
func (Ready) isEvent()    {}
func (Pong) isEvent()     {}

type envelope struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Attributes   json.RawMessage `json:"attributes"`
	Ready        *bool           `json:"ready"`
	ConnectionID string          `json:"connectionId"`
}

// Decode parses one raw websocket frame. Unknown discriminators and
// unparseable payloads return an error wrapping ErrMalformedMessage; the
// caller logs and drops those without breaking the stream.
func Decode(raw []byte) (Event, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Pong{}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if env.Type == "" {
		if env.Ready != nil {
			return Ready{ConnectionID: env.ConnectionID}, nil
		}
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformedMessage)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("%w: %s event without mower id", ErrMalformedMessage, env.Type)
	}

	if env.Type == typeSnapshot {
		var attrs snapshotAttrs
		if err := json.Unmarshal(env.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: snapshot attributes: %v", ErrMalformedMessage, err)
		}
		return Snapshot{MowerID: env.ID, State: toState(attrs)}, nil
	}

	delta, err := decodeDelta(env.Type, env.Attributes)
	if err != nil {
		return nil, err
	}
	return Update{MowerID: env.ID, Delta: delta}, nil
}

func decodeDelta(typ string, attrs json.RawMessage) (mower.Delta, error) {
	var d mower.Delta

	fail := func(err error) (mower.Delta, error) {
		return mower.Delta{}, fmt.Errorf("%w: %s attributes: %v", ErrMalformedMessage, typ, err)
	}

	switch typ {
	case typeBattery:
		var a struct {
			Battery batteryJSON `json:"battery"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		pct := int(a.Battery.BatteryPercent)
		d.Battery = &pct

	case typeCalendar:
		var a struct {
			Calendar calendarJSON `json:"calendar"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		d.Calendar = toCalendar(a.Calendar.Tasks)

	case typeCuttingHeight:
		var a struct {
			CuttingHeight struct {
				Height int `json:"height"`
			} `json:"cuttingHeight"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		d.CuttingHeight = &a.CuttingHeight.Height

	case typeHeadlights:
		var a struct {
			HeadLight headlightJSON `json:"headLight"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		mode := mower.HeadlightMode(strings.ToLower(a.HeadLight.Mode))
		d.Headlight = &mode

	case typeMessage:
		var a struct {
			Message messageJSON `json:"message"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		msg := toMessage(a.Message)
		d.Message = &msg

	case typeMower:
		var a struct {
			Mower mowerEventJSON `json:"mower"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		status := toStatusDelta(a.Mower)
		d.Status = &status

	case typePlanner:
		var a struct {
			Planner plannerEventJSON `json:"planner"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		planner := toPlannerDelta(a.Planner)
		d.Planner = &planner

	case typePosition:
		var a struct {
			Position positionJSON `json:"position"`
		}
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fail(err)
		}
		d.Position = &mower.Position{Latitude: a.Position.Latitude, Longitude: a.Position.Longitude}

	default:
		return mower.Delta{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, typ)
	}

	return d, nil
}

// DecodeMowerList parses the REST /mowers response document into one
// snapshot per mower resource. Resources of other types are skipped.
func DecodeMowerList(raw []byte) ([]Snapshot, error) {
	var doc struct {
		Data []struct {
			Type       string          `json:"type"`
			ID         string          `json:"id"`
			Attributes json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("event: decode mower list: %w", err)
	}

	snaps := make([]Snapshot, 0, len(doc.Data))
	for _, res := range doc.Data {
		if res.Type != typeSnapshot || res.ID == "" {
			continue
		}
		var attrs snapshotAttrs
		if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("event: decode mower %q: %w", res.ID, err)
		}
		snaps = append(snaps, Snapshot{MowerID: res.ID, State: toState(attrs)})
	}
	return snaps, nil
}
