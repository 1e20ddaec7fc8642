package mqttctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/zonesim/internal/ports"
	"github.com/Agrid-Dev/zonesim/internal/timeseries"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string
}

// Controller feeds input rows received on <base>/inputs into the zone,
// publishes each output on <base>/output, applies setpoint commands from
// <base>/set/<field> and keeps <base>/snapshot current.
type Controller struct {
	svc ports.ZoneService
	cfg Config
	log *slog.Logger
	now func() time.Time

	client mqtt.Client
}

func New(svc ports.ZoneService, cfg Config, log *slog.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "zonesim/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "zonesim-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log.With(slog.String("component", "mqtt")),
		now: time.Now,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		token := cl.SubscribeMultiple(map[string]byte{
			c.topic("set/+"):  c.cfg.QoS,
			c.topic("inputs"): c.cfg.QoS,
		}, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("subscribe failed", "error", err)
			return
		}
		c.log.Info("subscribed", "base_topic", c.cfg.BaseTopic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.log.Warn("connection lost", "error", err)
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.svc.Get()
	c.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if !reflect.DeepEqual(cur, last) {
				c.publishSnapshot()
				last = cur
			}
		}
	}
}

func (c *Controller) publishSnapshot() {
	dto := timeseries.ToSnapshotDTO(c.svc.Get())
	dto.DeviceID = c.cfg.DeviceID
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

func (c *Controller) publishOutput(out zone.OutputRow) {
	b, _ := json.Marshal(timeseries.ToOutputDTO(out))
	c.client.Publish(c.topic("output"), c.cfg.QoS, false, b)
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	t := msg.Topic()
	payload := msg.Payload()

	if t == c.topic("inputs") {
		c.handleInput(payload)
		return
	}

	// topic format: <base>/set/<field>
	prefix := c.topic("set/")
	if !strings.HasPrefix(t, prefix) {
		return
	}
	switch field := strings.TrimPrefix(t, prefix); field {
	case "setpoint":
		v, err := timeseries.DecodeSetpoint(payload)
		if err != nil {
			c.log.Warn("bad setpoint payload", "error", err)
			return
		}
		if err := c.svc.UpdateSetpoint(v); err != nil {
			c.log.Warn("setpoint rejected", "value", v, "error", err)
		}

	case "setpoint_reset":
		c.svc.ClearSetpoint()
	}
}

func (c *Controller) handleInput(payload []byte) {
	in, err := timeseries.DecodeInput(payload, c.now().UTC())
	if err != nil {
		c.log.Warn("bad input message", "error", err)
		return
	}
	out, err := c.svc.Step(in)
	if err != nil {
		var se *zone.StabilityError
		if errors.As(err, &se) {
			c.log.Error("simulation unstable", "variable", se.Variable, "value", se.Value, "bound", se.Bound)
			return
		}
		c.log.Warn("input row rejected", "timestamp", in.Timestamp, "error", err)
		return
	}
	c.publishOutput(out)
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}
