package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Agrid-Dev/zonesim/internal/ports"
	"github.com/Agrid-Dev/zonesim/internal/timeseries"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

type Config struct {
	Brokers  []string
	Topic    string
	DeviceID string
	RunID    string
	// Timeout bounds a single publish; defaults to 5s.
	Timeout time.Duration
}

// Publisher receives every output row of a run.
type Publisher interface {
	Publish(ctx context.Context, out zone.OutputRow) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes output rows as JSON, keyed by device id so one zone stays
// on one partition.
type Kafka struct {
	cfg Config
	w   messageWriter
}

func NewKafka(cfg Config) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafka(cfg, w), nil
}

func newKafka(cfg Config, w messageWriter) *Kafka {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Kafka{cfg: cfg, w: w}
}

func (k *Kafka) Publish(ctx context.Context, out zone.OutputRow) error {
	b, err := json.Marshal(timeseries.ToOutputDTO(out))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(k.cfg.DeviceID),
		Value: b,
		Time:  out.Timestamp,
		Headers: []kafka.Header{
			{Key: "device_id", Value: []byte(k.cfg.DeviceID)},
			{Key: "run_id", Value: []byte(k.cfg.RunID)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", k.cfg.Topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

type publishing struct {
	ports.ZoneService
	pub Publisher
	log *slog.Logger
}

// Publishing wraps svc so every successful step is handed to pub. A failed
// publish is logged and does not fail the step.
func Publishing(svc ports.ZoneService, pub Publisher, log *slog.Logger) ports.ZoneService {
	return &publishing{ZoneService: svc, pub: pub, log: log.With(slog.String("component", "sink"))}
}

func (p *publishing) Step(in zone.InputRow) (zone.OutputRow, error) {
	out, err := p.ZoneService.Step(in)
	if err != nil {
		return out, err
	}
	if err := p.pub.Publish(context.Background(), out); err != nil {
		p.log.Warn("publish failed", "timestamp", out.Timestamp, "error", err)
	}
	return out, nil
}
