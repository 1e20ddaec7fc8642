package timeseries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// inputMessage is a live input row. The short keys are the legacy sensor
// format, where solar gain is given in W.
type inputMessage struct {
	Timestamp        *string  `json:"timestamp"`
	Outdoor          *float64 `json:"outdoor_temperature_C"`
	Solar            *float64 `json:"solar_gain_kW"`
	Occupancy        *int     `json:"occupancy_count"`
	SetpointOverride *float64 `json:"setpoint_override_C"`

	LegacyOutdoor   *float64 `json:"T_out"`
	LegacySolarW    *float64 `json:"I_sol"`
	LegacyOccupancy *int     `json:"N_occ"`
	LegacySetpoint  *float64 `json:"T_set"`
}

const wattsPerKilowatt = 1000

// DecodeInput parses a JSON input message. Outdoor temperature and occupancy
// are required; solar gain defaults to 0. Messages without a timestamp are
// stamped with now.
func DecodeInput(b []byte, now time.Time) (zone.InputRow, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var m inputMessage
	if err := dec.Decode(&m); err != nil {
		return zone.InputRow{}, fmt.Errorf("%w: %w", zone.ErrInvalidInput, err)
	}

	row := zone.InputRow{Timestamp: now}
	if m.Timestamp != nil {
		ts, err := time.Parse(TimeLayout, *m.Timestamp)
		if err != nil {
			return zone.InputRow{}, fmt.Errorf("%w: %s: %w", zone.ErrInvalidInput, ColTimestamp, err)
		}
		row.Timestamp = ts
	}

	switch {
	case m.Outdoor != nil:
		row.OutdoorTemperature = *m.Outdoor
	case m.LegacyOutdoor != nil:
		row.OutdoorTemperature = *m.LegacyOutdoor
	default:
		return zone.InputRow{}, fmt.Errorf("%w: missing %s", zone.ErrInvalidInput, ColOutdoor)
	}

	switch {
	case m.Occupancy != nil:
		row.Occupancy = *m.Occupancy
	case m.LegacyOccupancy != nil:
		row.Occupancy = *m.LegacyOccupancy
	default:
		return zone.InputRow{}, fmt.Errorf("%w: missing %s", zone.ErrInvalidInput, ColOccupancy)
	}

	switch {
	case m.Solar != nil:
		row.SolarGain = *m.Solar
	case m.LegacySolarW != nil:
		row.SolarGain = *m.LegacySolarW / wattsPerKilowatt
	}

	switch {
	case m.SetpointOverride != nil:
		row.SetpointOverride = m.SetpointOverride
	case m.LegacySetpoint != nil:
		row.SetpointOverride = m.LegacySetpoint
	}
	return row, nil
}

// DecodeSetpoint accepts {"value": 21.5} or a bare number.
func DecodeSetpoint(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var v *float64
		if err := json.Unmarshal(b, &v); err != nil {
			return 0, err
		}
		if v == nil {
			return 0, errors.New("setpoint is null")
		}
		return *v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		return 0, err
	}
	if req.Value == nil {
		return 0, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}

// OutputDTO is the JSON form of an output row.
type OutputDTO struct {
	Timestamp       string  `json:"timestamp"`
	AirTemperature  float64 `json:"air_temperature_C"`
	WallTemperature float64 `json:"wall_temperature_C"`
	CO2             float64 `json:"co2_ppm"`
	Mode            string  `json:"hvac_mode"`
	Power           float64 `json:"power_kW"`
	Energy          float64 `json:"cumulative_energy_kWh"`
	Setpoint        float64 `json:"setpoint_C"`
}

func ToOutputDTO(o zone.OutputRow) OutputDTO {
	return OutputDTO{
		Timestamp:       o.Timestamp.Format(TimeLayout),
		AirTemperature:  o.AirTemperature,
		WallTemperature: o.WallTemperature,
		CO2:             o.CO2,
		Mode:            o.Mode.String(),
		Power:           o.Power,
		Energy:          o.Energy,
		Setpoint:        o.Setpoint,
	}
}

// SnapshotDTO is the JSON form of a live zone.
type SnapshotDTO struct {
	DeviceID         string     `json:"device_id,omitempty"`
	Time             string     `json:"time,omitempty"`
	AirTemperature   float64    `json:"air_temperature_C"`
	WallTemperature  float64    `json:"wall_temperature_C"`
	CO2              float64    `json:"co2_ppm"`
	Mode             string     `json:"hvac_mode"`
	Energy           float64    `json:"cumulative_energy_kWh"`
	Power            float64    `json:"power_kW"`
	Setpoint         float64    `json:"setpoint_C"`
	SetpointOverride *float64   `json:"setpoint_override_C"`
	Steps            uint64     `json:"steps"`
	Last             *OutputDTO `json:"last,omitempty"`
}

func ToSnapshotDTO(s zone.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		AirTemperature:   s.State.AirTemperature,
		WallTemperature:  s.State.WallTemperature,
		CO2:              s.State.CO2,
		Mode:             s.State.Mode.String(),
		Energy:           s.State.Energy,
		Power:            s.Last.Power,
		Setpoint:         s.Setpoint,
		SetpointOverride: s.SetpointOverride,
		Steps:            s.Steps,
	}
	if !s.State.Time.IsZero() {
		dto.Time = s.State.Time.Format(TimeLayout)
	}
	if s.Steps > 0 {
		last := ToOutputDTO(s.Last)
		dto.Last = &last
	}
	return dto
}
