// Package mqtt bridges mower state to an MQTT broker for Home Assistant
// integration. It defines the Publisher interface and includes both a
// StubPublisher (no-op) and a full Bridge that connects to a broker,
// publishes HA auto-discovery configs, relays command topics to the mower
// API, and forwards state changes from the session.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/trymwestin/mowerd/internal/config"
	"github.com/trymwestin/mowerd/internal/core/mower"
	"github.com/trymwestin/mowerd/internal/core/session"
)

// ---------------------------------------------------------------------------
// Publisher interface
// ---------------------------------------------------------------------------

// Publisher mirrors session state to an MQTT broker.
type Publisher interface {
	// Start connects to the broker and begins forwarding state changes.
	Start(ctx context.Context) error
	// Stop shuts down the publisher.
	Stop(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// StubPublisher (no-op, used when MQTT is disabled)
// ---------------------------------------------------------------------------

// StubPublisher is a no-op publisher for when MQTT is not configured.
type StubPublisher struct {
	log *slog.Logger
}

// NewStubPublisher creates a no-op MQTT publisher.
func NewStubPublisher(log *slog.Logger) *StubPublisher {
	return &StubPublisher{log: log}
}

// Start is a no-op.
func (s *StubPublisher) Start(_ context.Context) error {
	s.log.Info("mqtt bridge disabled (stub)")
	return nil
}

// Stop is a no-op.
func (s *StubPublisher) Stop(_ context.Context) error {
	return nil
}

var _ Publisher = (*StubPublisher)(nil)

// ---------------------------------------------------------------------------
// Session – abstraction over the coordinator
// ---------------------------------------------------------------------------

// Session is the slice of the session coordinator the bridge consumes.
type Session interface {
	Subscribe(cb session.Callback) session.Handle
	Unsubscribe(h session.Handle)
	GetAllStates() map[string]mower.State
	Commands() session.CommandAPI
}

// ---------------------------------------------------------------------------
// Bridge – full Home Assistant MQTT implementation
// ---------------------------------------------------------------------------

var _ Publisher = (*Bridge)(nil)

// Bridge publishes per-mower state and availability, Home Assistant
// auto-discovery configs, and relays command topics to the mower API.
type Bridge struct {
	cfg  config.MQTTConfig
	sess Session
	log  *slog.Logger

	client pahomqtt.Client

	handle  session.Handle
	changes chan session.Change
	stopC   chan struct{}
	wg      sync.WaitGroup

	mu         sync.Mutex
	discovered map[string]bool // mower ids with published discovery
}

// NewBridge creates a Home Assistant MQTT bridge.
func NewBridge(cfg config.MQTTConfig, sess Session, log *slog.Logger) *Bridge {
	return &Bridge{
		cfg:        cfg,
		sess:       sess,
		log:        log,
		changes:    make(chan session.Change, 128),
		stopC:      make(chan struct{}),
		discovered: make(map[string]bool),
	}
}

// Start connects to the MQTT broker, subscribes to command topics, and
// begins forwarding state changes from the session.
func (b *Bridge) Start(_ context.Context) error {
	availTopic := b.topic("status")

	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetUsername(b.cfg.Username).
		SetPassword(b.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(availTopic, "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.log.Info("mqtt connected, publishing state")
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.log.Warn("mqtt connection lost", "error", err)
		})

	b.client = pahomqtt.NewClient(opts)

	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Forward session changes through a buffered channel so a slow broker
	// never blocks the session's dispatch goroutine.
	b.handle = b.sess.Subscribe(func(ch session.Change) {
		select {
		case b.changes <- ch:
		default:
			b.log.Warn("mqtt bridge buffer full, dropping change", "mower_id", ch.MowerID)
		}
	})

	b.wg.Add(1)
	go b.changeLoop()

	b.log.Info("mqtt bridge started", "broker", b.cfg.Broker)
	return nil
}

// Stop gracefully disconnects from the broker and stops the change loop.
func (b *Bridge) Stop(_ context.Context) error {
	b.log.Info("mqtt bridge stopping")

	b.sess.Unsubscribe(b.handle)
	close(b.stopC)
	b.wg.Wait()

	if b.client != nil && b.client.IsConnected() {
		// Publish offline before disconnecting.
		b.publish(b.topic("status"), "offline", true)
		b.client.Disconnect(1000)
	}
	b.log.Info("mqtt bridge stopped")
	return nil
}

func (b *Bridge) changeLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopC:
			return
		case ch := <-b.changes:
			if ch.Err != nil {
				b.publish(b.topic("error"), ch.Err.Error(), false)
				continue
			}
			if ch.MowerID == "" {
				continue
			}
			b.publishMower(ch.MowerID, ch.State)
		}
	}
}

// onConnect runs on every (re)connect.
func (b *Bridge) onConnect() {
	// 1. Publish online availability (retained).
	b.publish(b.topic("status"), "online", true)

	// 2. Subscribe to command topics.
	b.subscribeCommands()

	// 3. Subscribe to HA birth topic for re-discovery.
	b.client.Subscribe("homeassistant/status", 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if string(msg.Payload()) == "online" {
			b.log.Info("home assistant came online, re-publishing discovery")
			b.mu.Lock()
			b.discovered = make(map[string]bool)
			b.mu.Unlock()
			b.publishFullState()
		}
	})

	// 4. Publish current state for every known mower.
	b.publishFullState()
}

func (b *Bridge) publishFullState() {
	for id, st := range b.sess.GetAllStates() {
		b.publishMower(id, st)
	}
}

func (b *Bridge) publishMower(id string, st mower.State) {
	if b.cfg.Discovery {
		b.maybePublishDiscovery(id, st)
	}

	data, err := json.Marshal(st)
	if err != nil {
		b.log.Error("failed to marshal mower state", "mower_id", id, "error", err)
		return
	}
	b.publish(b.mowerTopic(id, "state"), string(data), true)

	connected := "OFF"
	if st.Connected {
		connected = "ON"
	}
	b.publish(b.mowerTopic(id, "connected"), connected, true)
	b.publish(b.mowerTopic(id, "battery"), fmt.Sprintf("%d", st.Battery), true)
	b.publish(b.mowerTopic(id, "activity"), st.Status.Activity, true)
}

// ---------------------------------------------------------------------------
// Discovery configs
// ---------------------------------------------------------------------------

func discoveryTopic(component, mowerID, objectID string) string {
	return fmt.Sprintf("homeassistant/%s/automower_%s_%s/config", component, mowerID, objectID)
}

func (b *Bridge) maybePublishDiscovery(id string, st mower.State) {
	b.mu.Lock()
	done := b.discovered[id]
	if !done {
		b.discovered[id] = true
	}
	b.mu.Unlock()
	if done {
		return
	}

	name := st.System.Name
	if name == "" {
		name = id
	}
	dev := map[string]any{
		"identifiers":  []string{"automower_" + id},
		"name":         name,
		"manufacturer": "Husqvarna",
		"model":        st.System.Model,
	}
	avail := map[string]any{"topic": b.topic("status")}

	b.publishDiscoveryConfig("sensor", id, "battery", map[string]any{
		"name":                fmt.Sprintf("%s Battery", name),
		"unique_id":           fmt.Sprintf("automower_%s_battery", id),
		"state_topic":         b.mowerTopic(id, "battery"),
		"unit_of_measurement": "%",
		"device_class":        "battery",
		"state_class":         "measurement",
		"device":              dev,
		"availability":        avail,
	})

	b.publishDiscoveryConfig("sensor", id, "activity", map[string]any{
		"name":         fmt.Sprintf("%s Activity", name),
		"unique_id":    fmt.Sprintf("automower_%s_activity", id),
		"state_topic":  b.mowerTopic(id, "activity"),
		"device":       dev,
		"availability": avail,
	})

	b.publishDiscoveryConfig("binary_sensor", id, "connected", map[string]any{
		"name":         fmt.Sprintf("%s Connection", name),
		"unique_id":    fmt.Sprintf("automower_%s_connected", id),
		"state_topic":  b.mowerTopic(id, "connected"),
		"device_class": "connectivity",
		"payload_on":   "ON",
		"payload_off":  "OFF",
		"device":       dev,
		"availability": avail,
	})
}

func (b *Bridge) publishDiscoveryConfig(component, mowerID, objectID string, payload map[string]any) {
	topic := discoveryTopic(component, mowerID, objectID)
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("failed to marshal discovery config", "component", component, "object_id", objectID, "error", err)
		return
	}
	b.publish(topic, string(data), true)
}

// ---------------------------------------------------------------------------
// Command subscriptions
// ---------------------------------------------------------------------------

// commandPayload is the JSON body accepted on <prefix>/<mower>/command.
type commandPayload struct {
	Action     string `json:"action"`
	Duration   int    `json:"duration,omitempty"`
	WorkAreaID *int64 `json:"work_area_id,omitempty"`
	Height     int    `json:"height,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

func (b *Bridge) subscribeCommands() {
	topic := b.topic("+/command")
	token := b.client.Subscribe(topic, 1, b.handleCommand)
	token.Wait()
	if err := token.Error(); err != nil {
		b.log.Error("failed to subscribe to command topic", "topic", topic, "error", err)
		return
	}
	b.log.Info("subscribed to command topic", "topic", topic)
}

func (b *Bridge) handleCommand(_ pahomqtt.Client, msg pahomqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 3 {
		return
	}
	mowerID := parts[len(parts)-2]

	var cmd commandPayload
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.log.Warn("invalid command payload", "mower_id", mowerID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	api := b.sess.Commands()
	var err error
	switch cmd.Action {
	case "pause":
		err = api.Pause(ctx, mowerID)
	case "resume_schedule":
		err = api.ResumeSchedule(ctx, mowerID)
	case "park_until_next_schedule":
		err = api.ParkUntilNextSchedule(ctx, mowerID)
	case "park_until_further_notice":
		err = api.ParkUntilFurtherNotice(ctx, mowerID)
	case "park":
		if cmd.Duration <= 0 {
			b.log.Warn("park without positive duration", "mower_id", mowerID)
			return
		}
		err = api.Park(ctx, mowerID, cmd.Duration)
	case "start":
		if cmd.Duration <= 0 {
			b.log.Warn("start without positive duration", "mower_id", mowerID)
			return
		}
		err = api.Start(ctx, mowerID, cmd.Duration)
	case "start_in_work_area":
		if cmd.WorkAreaID == nil {
			b.log.Warn("start_in_work_area without work_area_id", "mower_id", mowerID)
			return
		}
		err = api.StartInWorkArea(ctx, mowerID, *cmd.WorkAreaID, cmd.Duration)
	case "set_cutting_height":
		err = api.SetCuttingHeight(ctx, mowerID, cmd.Height)
	case "set_headlight_mode":
		err = api.SetHeadlightMode(ctx, mowerID, mower.HeadlightMode(cmd.Mode))
	case "confirm_error":
		err = api.ConfirmError(ctx, mowerID)
	default:
		b.log.Warn("unknown command", "mower_id", mowerID, "action", cmd.Action)
		return
	}

	if err != nil {
		b.log.Error("command failed", "mower_id", mowerID, "action", cmd.Action, "error", err)
		return
	}
	b.log.Info("command relayed", "mower_id", mowerID, "action", cmd.Action)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (b *Bridge) topic(suffix string) string {
	return b.cfg.TopicPrefix + "/" + suffix
}

func (b *Bridge) mowerTopic(id, suffix string) string {
	return b.cfg.TopicPrefix + "/" + id + "/" + suffix
}

func (b *Bridge) publish(topic, payload string, retain bool) {
	token := b.client.Publish(topic, 1, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		b.log.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}
