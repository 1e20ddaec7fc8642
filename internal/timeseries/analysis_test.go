package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

var day = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func outputs(step time.Duration, energy []float64) []zone.OutputRow {
	rows := make([]zone.OutputRow, len(energy))
	for i, e := range energy {
		rows[i] = zone.OutputRow{
			Timestamp:      day.Add(time.Duration(i+1) * step),
			AirTemperature: 20 + float64(i),
			CO2:            400 + 10*float64(i),
			Energy:         e,
		}
	}
	return rows
}

func TestLookahead(t *testing.T) {
	rows := outputs(time.Minute, make([]float64, 5))
	ahead := Lookahead(rows, 2*time.Minute)
	if len(ahead) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(ahead))
	}
	for i := 0; i < 3; i++ {
		if !ahead[i].OK || ahead[i].AirTemperature != rows[i+2].AirTemperature || ahead[i].CO2 != rows[i+2].CO2 {
			t.Errorf("ahead[%d] = %+v, want row %d", i, ahead[i], i+2)
		}
	}
	for i := 3; i < 5; i++ {
		if ahead[i].OK {
			t.Errorf("ahead[%d] should be empty past the end of the run", i)
		}
	}
}

func TestLookaheadFollowsTimestamps(t *testing.T) {
	// 15 minute cadence with the 00:45 row missing.
	rows := outputs(15*time.Minute, make([]float64, 8))
	rows = append(rows[:2], rows[3:]...)

	ahead := Lookahead(rows, time.Hour)
	// 00:15 -> 01:15 is rows[3] after the removal.
	if !ahead[0].OK || ahead[0].AirTemperature != rows[3].AirTemperature {
		t.Fatalf("ahead[0] = %+v, want the 01:15 row %+v", ahead[0], rows[3])
	}
	if !ahead[2].OK || ahead[2].AirTemperature != rows[6].AirTemperature {
		t.Fatalf("ahead[2] = %+v, want the 02:00 row", ahead[2])
	}
	// 01:15 -> 02:15 is past the end.
	if ahead[3].OK {
		t.Fatalf("ahead[3] should be empty, got %+v", ahead[3])
	}

	// An hourly series with a one hour horizon pairs neighbouring rows.
	hourly := outputs(time.Hour, make([]float64, 3))
	got := Lookahead(hourly, time.Hour)
	if !got[0].OK || got[0].AirTemperature != hourly[1].AirTemperature {
		t.Fatalf("hourly ahead[0] = %+v, want row 1", got[0])
	}

	if got := Lookahead(rows, 0); got[0].OK {
		t.Fatal("a zero horizon disables the lookahead")
	}
}

func TestHourlyEnergy(t *testing.T) {
	// 30 minute steps: rows at 00:30, 01:00, 01:30, 02:00, 02:30.
	rows := outputs(30*time.Minute, []float64{0.5, 1, 1.5, 3, 3.25})
	got := HourlyEnergy(rows, 0)
	want := []HourEnergy{
		{Hour: day, Energy: 0.5},
		{Hour: day.Add(time.Hour), Energy: 1},
		{Hour: day.Add(2 * time.Hour), Energy: 1.75},
	}
	if len(got) != len(want) {
		t.Fatalf("HourlyEnergy() = %+v, want %+v", got, want)
	}
	for i := range want {
		if !got[i].Hour.Equal(want[i].Hour) || math.Abs(got[i].Energy-want[i].Energy) > 1e-12 {
			t.Errorf("hour %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	rows := outputs(time.Minute, []float64{1.1, 1.2, 1.2, 1.4})
	rows[0].Mode, rows[1].Mode, rows[2].Mode, rows[3].Mode = zone.ModeHeating, zone.ModeHeating, zone.ModeOff, zone.ModeCooling
	rows[1].Power = 2.5

	s := Summarize(zone.State{Energy: 1, Mode: zone.ModeOff}, rows)
	if s.Steps != 4 || !s.Start.Equal(rows[0].Timestamp) || !s.End.Equal(rows[3].Timestamp) {
		t.Fatalf("unexpected run extent %+v", s)
	}
	if s.MeanAir != 21.5 || s.MinAir != 20 || s.MaxAir != 23 {
		t.Errorf("air stats = %v/%v/%v", s.MeanAir, s.MinAir, s.MaxAir)
	}
	if s.PeakCO2 != 430 || s.MeanCO2 != 415 {
		t.Errorf("co2 stats = %v/%v", s.PeakCO2, s.MeanCO2)
	}
	if s.PeakPower != 2.5 {
		t.Errorf("peak power = %v", s.PeakPower)
	}
	if math.Abs(s.Energy-0.4) > 1e-12 {
		t.Errorf("energy = %v, want 0.4", s.Energy)
	}
	if s.ModeChanges != 3 || s.HeatingSteps != 2 || s.CoolingSteps != 1 {
		t.Errorf("mode stats = %d changes, %d heating, %d cooling", s.ModeChanges, s.HeatingSteps, s.CoolingSteps)
	}

	if got := Summarize(zone.State{}, nil); got.Steps != 0 {
		t.Fatalf("empty run summary = %+v", got)
	}
}

func TestSynthetic(t *testing.T) {
	rows := Synthetic(day, DemoRows, DemoStep, nil)
	if len(rows) != DemoRows {
		t.Fatalf("expected %d rows, got %d", DemoRows, len(rows))
	}
	if math.Abs(rows[0].OutdoorTemperature-25) > 1e-9 || math.Abs(rows[len(rows)-1].OutdoorTemperature-25) > 1e-9 {
		t.Fatalf("outdoor temperature must start and end at 25, got %v and %v",
			rows[0].OutdoorTemperature, rows[len(rows)-1].OutdoorTemperature)
	}
	occupied := 0
	for i, r := range rows {
		if !r.Timestamp.Equal(day.Add(time.Duration(i) * DemoStep)) {
			t.Fatalf("row %d has timestamp %v", i, r.Timestamp)
		}
		if r.OutdoorTemperature < 20-1e-9 || r.OutdoorTemperature > 30+1e-9 {
			t.Fatalf("row %d outdoor temperature %v outside 25 ± 5", i, r.OutdoorTemperature)
		}
		if r.Occupancy < 0 || r.Occupancy > 20 {
			t.Fatalf("row %d occupancy %d outside [0,20]", i, r.Occupancy)
		}
		if r.Occupancy > 0 {
			occupied++
		}
		if r.SetpointOverride != nil {
			t.Fatalf("row %d carries an unexpected setpoint", i)
		}
	}
	if rows[0].Occupancy != 0 || occupied == 0 {
		t.Fatalf("expected an empty start and occupied periods, got first=%d occupied=%d", rows[0].Occupancy, occupied)
	}

	sp := 24.0
	for _, r := range Synthetic(day, 3, time.Minute, &sp) {
		if r.SetpointOverride == nil || *r.SetpointOverride != 24 {
			t.Fatal("expected every row to carry the setpoint")
		}
	}
	if Synthetic(day, 0, time.Minute, nil) != nil {
		t.Fatal("expected no rows for n=0")
	}
}
