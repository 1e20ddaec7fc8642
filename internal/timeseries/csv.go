package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// Input columns.
const (
	ColTimestamp        = "timestamp"
	ColOutdoor          = "outdoor_temperature_C"
	ColSolar            = "solar_gain_kW"
	ColOccupancy        = "occupancy_count"
	ColSetpointOverride = "setpoint_override_C"
)

// Output columns.
const (
	ColAir      = "air_temperature_C"
	ColWall     = "wall_temperature_C"
	ColCO2      = "co2_ppm"
	ColMode     = "hvac_mode"
	ColPower    = "power_kW"
	ColEnergy   = "cumulative_energy_kWh"
	ColAirAhead = "air_temperature_C_h1"
	ColCO2Ahead = "co2_ppm_h1"
)

const TimeLayout = time.RFC3339

var ErrMissingColumn = errors.New("missing column")

var requiredInput = []string{ColTimestamp, ColOutdoor, ColSolar, ColOccupancy}

// ReadCSV yields one InputRow per record of r. The first record is the header;
// columns may come in any order and unknown columns are ignored. Malformed
// records are yielded as errors wrapping zone.ErrInvalidInput with their line
// number, so a caller may skip them and keep reading. Header and I/O errors end
// the sequence.
func ReadCSV(r io.Reader) iter.Seq2[zone.InputRow, error] {
	return func(yield func(zone.InputRow, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true

		header, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("empty input: %w", ErrMissingColumn)
			}
			yield(zone.InputRow{}, fmt.Errorf("read header: %w", err))
			return
		}
		idx := make(map[string]int, len(header))
		for i, h := range header {
			idx[strings.TrimSpace(h)] = i
		}
		for _, col := range requiredInput {
			if _, ok := idx[col]; !ok {
				yield(zone.InputRow{}, fmt.Errorf("%w: %s", ErrMissingColumn, col))
				return
			}
		}

		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			var row zone.InputRow
			if err == nil {
				line, _ := cr.FieldPos(0)
				row, err = parseRecord(rec, idx)
				if err != nil {
					err = fmt.Errorf("line %d: %w: %w", line, zone.ErrInvalidInput, err)
				}
			} else {
				var pe *csv.ParseError
				if !errors.As(err, &pe) {
					yield(zone.InputRow{}, err)
					return
				}
				err = fmt.Errorf("%w: %w", zone.ErrInvalidInput, err)
			}
			if !yield(row, err) {
				return
			}
		}
	}
}

func parseRecord(rec []string, idx map[string]int) (zone.InputRow, error) {
	field := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var row zone.InputRow
	ts, err := time.Parse(TimeLayout, field(ColTimestamp))
	if err != nil {
		return row, fmt.Errorf("%s: %w", ColTimestamp, err)
	}
	row.Timestamp = ts

	if row.OutdoorTemperature, err = parseFloat(ColOutdoor, field(ColOutdoor)); err != nil {
		return row, err
	}
	if row.SolarGain, err = parseFloat(ColSolar, field(ColSolar)); err != nil {
		return row, err
	}
	occ, err := strconv.Atoi(field(ColOccupancy))
	if err != nil {
		return row, fmt.Errorf("%s: %w", ColOccupancy, err)
	}
	row.Occupancy = occ

	if s := field(ColSetpointOverride); s != "" {
		sp, err := parseFloat(ColSetpointOverride, s)
		if err != nil {
			return row, err
		}
		row.SetpointOverride = &sp
	}
	return row, nil
}

func parseFloat(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return v, nil
}

// CSVWriter streams output rows. With lookahead enabled every row carries the
// one-hour-ahead air temperature and CO2, left empty where the run ends first.
type CSVWriter struct {
	w         *csv.Writer
	lookahead bool
	header    bool
}

func NewCSVWriter(w io.Writer, lookahead bool) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), lookahead: lookahead}
}

func (c *CSVWriter) Write(row zone.OutputRow, ahead Ahead) error {
	if !c.header {
		cols := []string{ColTimestamp, ColAir, ColWall, ColCO2, ColMode, ColPower, ColEnergy}
		if c.lookahead {
			cols = append(cols, ColAirAhead, ColCO2Ahead)
		}
		if err := c.w.Write(cols); err != nil {
			return err
		}
		c.header = true
	}
	rec := []string{
		row.Timestamp.Format(TimeLayout),
		formatFloat(row.AirTemperature),
		formatFloat(row.WallTemperature),
		formatFloat(row.CO2),
		row.Mode.String(),
		formatFloat(row.Power),
		formatFloat(row.Energy),
	}
	if c.lookahead {
		if ahead.OK {
			rec = append(rec, formatFloat(ahead.AirTemperature), formatFloat(ahead.CO2))
		} else {
			rec = append(rec, "", "")
		}
	}
	return c.w.Write(rec)
}

func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
