package timeseries

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// Ahead is the state observed a fixed horizon after a row.
type Ahead struct {
	AirTemperature float64
	CO2            float64
	OK             bool
}

// Lookahead pairs every row with the row stamped exactly horizon later.
// Rows without such a partner, near the end of the run or next to a gap,
// get a zero Ahead. rows must be in timestamp order.
func Lookahead(rows []zone.OutputRow, horizon time.Duration) []Ahead {
	out := make([]Ahead, len(rows))
	if horizon <= 0 {
		return out
	}
	for i := range rows {
		target := rows[i].Timestamp.Add(horizon)
		j, found := slices.BinarySearchFunc(rows[i:], target, func(r zone.OutputRow, t time.Time) int {
			return r.Timestamp.Compare(t)
		})
		if !found {
			continue
		}
		r := rows[i+j]
		out[i] = Ahead{AirTemperature: r.AirTemperature, CO2: r.CO2, OK: true}
	}
	return out
}

// HourEnergy is the energy consumed during one clock hour.
type HourEnergy struct {
	Hour   time.Time
	Energy float64 // kWh
}

// HourlyEnergy buckets cumulative energy by clock hour: each hour's
// consumption is its last cumulative value minus the previous hour's, the
// first hour being measured from initial.
func HourlyEnergy(rows []zone.OutputRow, initial float64) []HourEnergy {
	var out []HourEnergy
	prev := initial
	for i, r := range rows {
		h := r.Timestamp.Truncate(time.Hour)
		if i+1 < len(rows) && rows[i+1].Timestamp.Truncate(time.Hour).Equal(h) {
			continue
		}
		out = append(out, HourEnergy{Hour: h, Energy: r.Energy - prev})
		prev = r.Energy
	}
	return out
}

// Summary describes a finished run.
type Summary struct {
	Steps        int
	Start, End   time.Time
	MeanAir      float64
	StdDevAir    float64
	MinAir       float64
	MaxAir       float64
	MeanCO2      float64
	PeakCO2      float64
	PeakPower    float64
	Energy       float64 // kWh consumed during the run
	ModeChanges  int
	HeatingSteps int
	CoolingSteps int
}

// Summarize computes run statistics. initial is the state the run started
// from; it anchors the energy total and the first mode change.
func Summarize(initial zone.State, rows []zone.OutputRow) Summary {
	if len(rows) == 0 {
		return Summary{}
	}
	air := make([]float64, len(rows))
	co2 := make([]float64, len(rows))
	power := make([]float64, len(rows))

	s := Summary{
		Steps:  len(rows),
		Start:  rows[0].Timestamp,
		End:    rows[len(rows)-1].Timestamp,
		Energy: rows[len(rows)-1].Energy - initial.Energy,
	}
	prev := initial.Mode
	for i, r := range rows {
		air[i], co2[i], power[i] = r.AirTemperature, r.CO2, r.Power
		if r.Mode != prev {
			s.ModeChanges++
		}
		prev = r.Mode
		switch r.Mode {
		case zone.ModeHeating:
			s.HeatingSteps++
		case zone.ModeCooling:
			s.CoolingSteps++
		}
	}
	s.MeanAir, s.StdDevAir = stat.MeanStdDev(air, nil)
	s.MinAir, s.MaxAir = floats.Min(air), floats.Max(air)
	s.MeanCO2 = stat.Mean(co2, nil)
	s.PeakCO2 = floats.Max(co2)
	s.PeakPower = floats.Max(power)
	return s
}
