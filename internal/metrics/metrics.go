package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Agrid-Dev/zonesim/internal/ports"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

const namespace = "zonesim"

// Metrics mirrors the live zone into Prometheus gauges and counts steps and
// rejected rows.
type Metrics struct {
	airTemperature  prometheus.Gauge
	wallTemperature prometheus.Gauge
	co2             prometheus.Gauge
	power           prometheus.Gauge
	energy          prometheus.Gauge
	setpoint        prometheus.Gauge
	mode            *prometheus.GaugeVec
	steps           prometheus.Counter
	rejected        *prometheus.CounterVec
	setpointUpdates prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		airTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_temperature_celsius",
			Help:      "Zone air temperature after the last step",
		}),
		wallTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wall_temperature_celsius",
			Help:      "Envelope temperature after the last step",
		}),
		co2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "co2_ppm",
			Help:      "Zone CO2 concentration after the last step",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_kilowatts",
			Help:      "Electrical power drawn during the last step",
		}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_kilowatt_hours",
			Help:      "Cumulative electrical energy",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "setpoint_celsius",
			Help:      "Setpoint used by the last step",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hvac_mode",
			Help:      "1 for the HVAC mode of the last step, 0 for the others",
		}, []string{"mode"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Input rows applied",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_rows_total",
			Help:      "Input rows rejected, by reason",
		}, []string{"reason"}),
		setpointUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setpoint_updates_total",
			Help:      "Accepted live setpoint changes, including resets",
		}),
	}
	reg.MustRegister(m.airTemperature, m.wallTemperature, m.co2, m.power, m.energy,
		m.setpoint, m.mode, m.steps, m.rejected, m.setpointUpdates)
	return m
}

func (m *Metrics) Observe(out zone.OutputRow) {
	m.steps.Inc()
	m.airTemperature.Set(out.AirTemperature)
	m.wallTemperature.Set(out.WallTemperature)
	m.co2.Set(out.CO2)
	m.power.Set(out.Power)
	m.energy.Set(out.Energy)
	m.setpoint.Set(out.Setpoint)
	for _, md := range []zone.Mode{zone.ModeOff, zone.ModeHeating, zone.ModeCooling} {
		v := 0.0
		if md == out.Mode {
			v = 1
		}
		m.mode.WithLabelValues(md.String()).Set(v)
	}
}

// Reject counts a failed step under invalid_input, unstable or other.
func (m *Metrics) Reject(err error) {
	m.rejected.WithLabelValues(reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, zone.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, zone.ErrUnstable):
		return "unstable"
	default:
		return "other"
	}
}

type instrumented struct {
	ports.ZoneService
	m *Metrics
}

// Instrument wraps svc so every step and setpoint change is recorded.
func Instrument(svc ports.ZoneService, m *Metrics) ports.ZoneService {
	return &instrumented{ZoneService: svc, m: m}
}

func (i *instrumented) Step(in zone.InputRow) (zone.OutputRow, error) {
	out, err := i.ZoneService.Step(in)
	if err != nil {
		i.m.Reject(err)
		return out, err
	}
	i.m.Observe(out)
	return out, nil
}

func (i *instrumented) UpdateSetpoint(v float64) error {
	if err := i.ZoneService.UpdateSetpoint(v); err != nil {
		return err
	}
	i.m.setpointUpdates.Inc()
	return nil
}

func (i *instrumented) ClearSetpoint() {
	i.ZoneService.ClearSetpoint()
	i.m.setpointUpdates.Inc()
}
