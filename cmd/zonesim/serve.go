package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/zonesim/cmd/app"
	httpctrl "github.com/Agrid-Dev/zonesim/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/zonesim/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/zonesim/internal/controllers/mqtt"
	"github.com/Agrid-Dev/zonesim/internal/device"
	"github.com/Agrid-Dev/zonesim/internal/metrics"
	"github.com/Agrid-Dev/zonesim/internal/ports"
	"github.com/Agrid-Dev/zonesim/internal/sink"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a live zone driven over HTTP, MQTT and Modbus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			lg, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer lg.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			err = serve(ctx, cfg, lg.Logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

type runner interface {
	Run(ctx context.Context) error
}

func serve(ctx context.Context, cfg app.Config, log *slog.Logger) error {
	params, err := cfg.ZoneParams()
	if err != nil {
		return err
	}
	initial, err := cfg.InitialState()
	if err != nil {
		return err
	}
	var opts []zone.Option
	if cfg.Simulation.TimestampStep {
		opts = append(opts, zone.WithTimestampStep())
	}
	z, err := zone.New(params, initial, opts...)
	if err != nil {
		return err
	}
	dev := device.New(cfg.DeviceID, z)
	log = log.With("run_id", dev.RunID)

	var svc ports.ZoneService = dev.Z
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		svc = metrics.Instrument(svc, metrics.New(reg))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if cfg.Sink.Kafka.Enabled {
		k, err := sink.NewKafka(sink.Config{
			Brokers:  cfg.Sink.Kafka.Brokers,
			Topic:    cfg.Sink.Kafka.Topic,
			DeviceID: dev.ID,
			RunID:    dev.RunID,
			Timeout:  cfg.Sink.Kafka.Timeout,
		})
		if err != nil {
			return err
		}
		defer k.Close()
		svc = sink.Publishing(svc, k, log)
	}

	runners, err := controllers(svc, dev.ID, cfg.Controllers, metricsHandler, log)
	if err != nil {
		return err
	}
	if len(runners) == 0 {
		return errors.New("no controller enabled")
	}

	log.Info("zone started",
		"equipment", params.Equipment.String(),
		"setpoint_c", params.Setpoint,
		"step", params.Step,
		"controllers", len(runners),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}

func controllers(svc ports.ZoneService, deviceID string, cfg app.ControllersConfig, metricsHandler http.Handler, log *slog.Logger) ([]runner, error) {
	var out []runner

	if cfg.HTTP.Enabled {
		var opts []httpctrl.Option
		if metricsHandler != nil {
			opts = append(opts, httpctrl.WithMetrics(metricsHandler))
		}
		if cfg.HTTP.AccessLog {
			opts = append(opts, httpctrl.WithAccessLog(os.Stderr))
		}
		out = append(out, httpctrl.New(svc, cfg.HTTP.Addr, deviceID, opts...))
		log.Info("http controller", "addr", cfg.HTTP.Addr)
	}

	if cfg.MQTT.Enabled {
		c, err := mqttctrl.New(svc, mqttctrl.Config{
			DeviceID:        deviceID,
			BrokerURL:       cfg.MQTT.BrokerURL,
			ClientID:        cfg.MQTT.ClientID,
			BaseTopic:       cfg.MQTT.BaseTopic,
			QoS:             cfg.MQTT.QoS,
			RetainSnapshot:  cfg.MQTT.RetainSnapshot,
			PublishInterval: cfg.MQTT.PublishInterval,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
		}, log)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		log.Info("mqtt controller", "broker", cfg.MQTT.BrokerURL)
	}

	if cfg.Modbus.Enabled {
		c, err := modbusctrl.New(svc, modbusctrl.Config{
			DeviceID: deviceID,
			Addr:     cfg.Modbus.Addr,
			UnitID:   cfg.Modbus.UnitID,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		log.Info("modbus controller", "addr", cfg.Modbus.Addr)
	}

	return out, nil
}
