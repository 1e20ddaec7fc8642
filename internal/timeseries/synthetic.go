package timeseries

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// Built-in demo series: one day at 5 minutes.
const (
	DemoRows = 288
	DemoStep = 5 * time.Minute
)

// Synthetic builds a demo input series: outdoor temperature swinging 25 ± 5 °C
// over one sine period and an occupancy profile peaking at 20 people twice.
// A nil setpoint leaves the configured setpoint in charge.
func Synthetic(start time.Time, n int, step time.Duration, setpoint *float64) []zone.InputRow {
	if n <= 0 {
		return nil
	}
	phase := make([]float64, n)
	occ := make([]float64, n)
	if n == 1 {
		phase[0], occ[0] = 0, -1
	} else {
		floats.Span(phase, 0, 2*math.Pi)
		floats.Span(occ, -1, 3*math.Pi)
	}

	rows := make([]zone.InputRow, n)
	for i := range rows {
		rows[i] = zone.InputRow{
			Timestamp:          start.Add(time.Duration(i) * step),
			OutdoorTemperature: 25 + 5*math.Sin(phase[i]),
			Occupancy:          int(math.Max(math.Sin(occ[i]), 0) * 20),
		}
		if setpoint != nil {
			sp := *setpoint
			rows[i].SetpointOverride = &sp
		}
	}
	return rows
}
