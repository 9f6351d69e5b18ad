package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

// JSON:API command payloads. The vendor wraps every command in a data
// object with a type discriminator.

type commandBody struct {
	Data commandData `json:"data"`
}

type commandData struct {
	Type       string `json:"type"`
	ID         any    `json:"id,omitempty"`
	Attributes any    `json:"attributes,omitempty"`
}

func actionsPath(mowerID string) string { return "mowers/" + mowerID + "/actions" }

func (c *Client) postAction(ctx context.Context, mowerID string, data commandData) error {
	_, err := c.do(ctx, http.MethodPost, actionsPath(mowerID), commandBody{Data: data})
	return err
}

// ResumeSchedule removes any planner override and lets the mower resume the
// calendar schedule.
func (c *Client) ResumeSchedule(ctx context.Context, mowerID string) error {
	return c.postAction(ctx, mowerID, commandData{Type: "ResumeSchedule"})
}

// Pause pauses the mower where it stands.
func (c *Client) Pause(ctx context.Context, mowerID string) error {
	return c.postAction(ctx, mowerID, commandData{Type: "Pause"})
}

// ParkUntilNextSchedule sends the mower to the charging station until the
// next scheduled task.
func (c *Client) ParkUntilNextSchedule(ctx context.Context, mowerID string) error {
	return c.postAction(ctx, mowerID, commandData{Type: "ParkUntilNextSchedule"})
}

// ParkUntilFurtherNotice parks the mower until it is manually resumed.
func (c *Client) ParkUntilFurtherNotice(ctx context.Context, mowerID string) error {
	return c.postAction(ctx, mowerID, commandData{Type: "ParkUntilFurtherNotice"})
}

// Park parks the mower for the given number of minutes.
func (c *Client) Park(ctx context.Context, mowerID string, minutes int) error {
	return c.postAction(ctx, mowerID, commandData{
		Type:       "Park",
		Attributes: map[string]any{"duration": minutes},
	})
}

// Start starts the mower for the given number of minutes.
func (c *Client) Start(ctx context.Context, mowerID string, minutes int) error {
	return c.postAction(ctx, mowerID, commandData{
		Type:       "Start",
		Attributes: map[string]any{"duration": minutes},
	})
}

// StartInWorkArea starts mowing the given work area. With minutes zero the
// mower continues until stopped.
func (c *Client) StartInWorkArea(ctx context.Context, mowerID string, workAreaID int64, minutes int) error {
	attrs := map[string]any{"workAreaId": workAreaID}
	if minutes > 0 {
		attrs["duration"] = minutes
	}
	return c.postAction(ctx, mowerID, commandData{Type: "StartInWorkArea", Attributes: attrs})
}

// SetCuttingHeight sets the global cutting height.
func (c *Client) SetCuttingHeight(ctx context.Context, mowerID string, height int) error {
	_, err := c.do(ctx, http.MethodPost, "mowers/"+mowerID+"/settings", commandBody{Data: commandData{
		Type:       "settings",
		Attributes: map[string]any{"cuttingHeight": height},
	}})
	return err
}

// SetCuttingHeightWorkArea sets the cutting height for one work area.
func (c *Client) SetCuttingHeightWorkArea(ctx context.Context, mowerID string, workAreaID int64, height int) error {
	path := fmt.Sprintf("mowers/%s/workAreas/%d", mowerID, workAreaID)
	_, err := c.do(ctx, http.MethodPatch, path, commandBody{Data: commandData{
		Type:       "workArea",
		ID:         workAreaID,
		Attributes: map[string]any{"cuttingHeight": height},
	}})
	return err
}

// SetHeadlightMode sets the headlight behaviour. The vendor expects the
// upper-cased enum on the wire; the normalized model keeps it lower-cased.
func (c *Client) SetHeadlightMode(ctx context.Context, mowerID string, mode mower.HeadlightMode) error {
	_, err := c.do(ctx, http.MethodPost, "mowers/"+mowerID+"/settings", commandBody{Data: commandData{
		Type:       "settings",
		Attributes: map[string]any{"headlight": map[string]any{"mode": strings.ToUpper(string(mode))}},
	}})
	return err
}

// SetCalendar replaces the mower's task list.
func (c *Client) SetCalendar(ctx context.Context, mowerID string, tasks []mower.CalendarTask) error {
	wire := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		m := map[string]any{
			"start":     t.Start,
			"duration":  t.Duration,
			"monday":    t.Monday,
			"tuesday":   t.Tuesday,
			"wednesday": t.Wednesday,
			"thursday":  t.Thursday,
			"friday":    t.Friday,
			"saturday":  t.Saturday,
			"sunday":    t.Sunday,
		}
		if t.WorkAreaID != nil {
			m["workAreaId"] = *t.WorkAreaID
		}
		wire[i] = m
	}
	_, err := c.do(ctx, http.MethodPost, "mowers/"+mowerID+"/calendar", commandBody{Data: commandData{
		Type:       "calendar",
		Attributes: map[string]any{"tasks": wire},
	}})
	return err
}

// SwitchStayOutZone enables or disables one stay-out zone.
func (c *Client) SwitchStayOutZone(ctx context.Context, mowerID, zoneID string, enable bool) error {
	path := "mowers/" + mowerID + "/stayOutZones/" + zoneID
	_, err := c.do(ctx, http.MethodPatch, path, commandBody{Data: commandData{
		Type:       "stayOutZone",
		ID:         zoneID,
		Attributes: map[string]any{"enable": enable},
	}})
	return err
}

// ConfirmError confirms a non-fatal mower error.
func (c *Client) ConfirmError(ctx context.Context, mowerID string) error {
	_, err := c.do(ctx, http.MethodPost, "mowers/"+mowerID+"/errors/confirm", struct{}{})
	return err
}
