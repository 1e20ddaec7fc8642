package timeseries

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"occupancy_count,timestamp,outdoor_temperature_C,solar_gain_kW,setpoint_override_C,comment",
		"3,2025-06-01T00:00:00Z,12.5,0.25,,first",
		"0,2025-06-01T00:05:00Z,13,0,22.5,second",
	}, "\n")

	var rows []zone.InputRow
	for row, err := range ReadCSV(strings.NewReader(in)) {
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first := rows[0]
	if !first.Timestamp.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) ||
		first.OutdoorTemperature != 12.5 || first.SolarGain != 0.25 || first.Occupancy != 3 || first.SetpointOverride != nil {
		t.Fatalf("unexpected first row %+v", first)
	}
	if rows[1].SetpointOverride == nil || *rows[1].SetpointOverride != 22.5 {
		t.Fatalf("expected setpoint override 22.5, got %v", rows[1].SetpointOverride)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	in := "timestamp,outdoor_temperature_C,occupancy_count\n2025-06-01T00:00:00Z,1,1\n"
	n := 0
	var gotErr error
	for _, err := range ReadCSV(strings.NewReader(in)) {
		n++
		gotErr = err
	}
	if n != 1 || !errors.Is(gotErr, ErrMissingColumn) {
		t.Fatalf("expected a single ErrMissingColumn, got %d items and %v", n, gotErr)
	}
	if errors.Is(gotErr, zone.ErrInvalidInput) {
		t.Fatal("a bad header must not be skippable")
	}
}

func TestReadCSVEmpty(t *testing.T) {
	for _, err := range ReadCSV(strings.NewReader("")) {
		if !errors.Is(err, ErrMissingColumn) {
			t.Fatalf("expected ErrMissingColumn, got %v", err)
		}
	}
}

func TestReadCSVBadRecords(t *testing.T) {
	in := strings.Join([]string{
		"timestamp,outdoor_temperature_C,solar_gain_kW,occupancy_count",
		"2025-06-01T00:00:00Z,1,0,1",
		"yesterday,1,0,1",
		"2025-06-01T00:10:00Z,warm,0,1",
		"2025-06-01T00:15:00Z,1,0,1.5",
		"2025-06-01T00:20:00Z,1",
		"2025-06-01T00:25:00Z,1,0,2",
	}, "\n")

	var good int
	var lines []string
	for _, err := range ReadCSV(strings.NewReader(in)) {
		if err != nil {
			if !errors.Is(err, zone.ErrInvalidInput) {
				t.Fatalf("record error must wrap ErrInvalidInput: %v", err)
			}
			lines = append(lines, err.Error())
			continue
		}
		good++
	}
	if good != 2 {
		t.Fatalf("expected 2 good rows, got %d", good)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 bad rows, got %d: %v", len(lines), lines)
	}
	for i, want := range []string{"line 3", "line 4", "line 5", "line 6"} {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("error %d = %q, want prefix %q", i, lines[i], want)
		}
	}
}

func TestReadCSVStopsWhenConsumerBreaks(t *testing.T) {
	in := "timestamp,outdoor_temperature_C,solar_gain_kW,occupancy_count\n" +
		"2025-06-01T00:00:00Z,1,0,1\n2025-06-01T00:05:00Z,1,0,1\n"
	n := 0
	for range ReadCSV(strings.NewReader(in)) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestCSVWriter(t *testing.T) {
	row := zone.OutputRow{
		Timestamp:       time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC),
		AirTemperature:  20.5,
		WallTemperature: 19.25,
		CO2:             400,
		Mode:            zone.ModeHeating,
		Power:           1.7,
		Energy:          0.1417,
	}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewCSVWriter(&buf, false)
		if err := w.Write(row, Ahead{}); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		want := "timestamp,air_temperature_C,wall_temperature_C,co2_ppm,hvac_mode,power_kW,cumulative_energy_kWh\n" +
			"2025-06-01T00:05:00Z,20.5000,19.2500,400.0000,heating,1.7000,0.1417\n"
		if got := buf.String(); got != want {
			t.Fatalf("got\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("lookahead", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewCSVWriter(&buf, true)
		if err := w.Write(row, Ahead{AirTemperature: 21, CO2: 410, OK: true}); err != nil {
			t.Fatal(err)
		}
		if err := w.Write(row, Ahead{}); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", lines)
		}
		if !strings.HasSuffix(lines[0], ",air_temperature_C_h1,co2_ppm_h1") {
			t.Fatalf("missing lookahead columns in header %q", lines[0])
		}
		if !strings.HasSuffix(lines[1], ",21.0000,410.0000") {
			t.Fatalf("unexpected lookahead values in %q", lines[1])
		}
		if !strings.HasSuffix(lines[2], "0.1417,,") {
			t.Fatalf("expected empty lookahead cells in %q", lines[2])
		}
	})
}
