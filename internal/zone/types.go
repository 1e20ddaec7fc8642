package zone

import (
	"fmt"
	"time"
)

// Mode is the HVAC operating mode. The zero value is ModeOff.
type Mode int

const (
	ModeOff Mode = iota
	ModeHeating
	ModeCooling
)

func (m Mode) Valid() bool {
	return m == ModeOff || m == ModeHeating || m == ModeCooling
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeHeating:
		return "heating"
	case ModeCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// Active reports whether the compressor runs in this mode.
func (m Mode) Active() bool {
	return m == ModeHeating || m == ModeCooling
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "off":
		return ModeOff, nil
	case "heating", "heat":
		return ModeHeating, nil
	case "cooling", "cool":
		return ModeCooling, nil
	default:
		return ModeOff, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Equipment decides which directions the controller may drive the zone.
type Equipment int

const (
	EquipmentUnknown Equipment = iota
	EquipmentHeating
	EquipmentCooling
	EquipmentHeatPump
)

func (e Equipment) Valid() bool {
	return e == EquipmentHeating || e == EquipmentCooling || e == EquipmentHeatPump
}

func (e Equipment) CanHeat() bool { return e == EquipmentHeating || e == EquipmentHeatPump }
func (e Equipment) CanCool() bool { return e == EquipmentCooling || e == EquipmentHeatPump }

// Allows reports whether the equipment can run in mode m. Off is always allowed.
func (e Equipment) Allows(m Mode) bool {
	switch m {
	case ModeOff:
		return true
	case ModeHeating:
		return e.CanHeat()
	case ModeCooling:
		return e.CanCool()
	default:
		return false
	}
}

func (e Equipment) String() string {
	switch e {
	case EquipmentHeating:
		return "heating"
	case EquipmentCooling:
		return "cooling"
	case EquipmentHeatPump:
		return "heat_pump"
	default:
		return "unknown"
	}
}

func ParseEquipment(s string) (Equipment, error) {
	switch s {
	case "heating":
		return EquipmentHeating, nil
	case "cooling":
		return EquipmentCooling, nil
	case "heat_pump":
		return EquipmentHeatPump, nil
	default:
		return EquipmentUnknown, fmt.Errorf("%w: %q", ErrInvalidEquipment, s)
	}
}

// State is the mutable simulation state advanced once per step.
type State struct {
	Time            time.Time // timestamp of the last consumed input row
	AirTemperature  float64   // °C
	WallTemperature float64   // °C
	CO2             float64   // ppm
	Mode            Mode
	Energy          float64 // cumulative kWh
}

// InputRow is one sample of the driving time series.
type InputRow struct {
	Timestamp          time.Time
	OutdoorTemperature float64 // °C
	SolarGain          float64 // kW, solar plus non-occupant internal gains
	Occupancy          int
	SetpointOverride   *float64 // °C, nil when the configured setpoint applies
}

// OutputRow is emitted once per step. It carries every State field, so the
// last row of a run is enough to resume it.
type OutputRow struct {
	Timestamp       time.Time
	AirTemperature  float64
	WallTemperature float64
	CO2             float64
	Mode            Mode
	Power           float64 // kW
	Energy          float64 // cumulative kWh
	Setpoint        float64 // effective setpoint used for the step
}

// State returns the simulation state the row was produced from.
func (o OutputRow) State() State {
	return State{
		Time:            o.Timestamp,
		AirTemperature:  o.AirTemperature,
		WallTemperature: o.WallTemperature,
		CO2:             o.CO2,
		Mode:            o.Mode,
		Energy:          o.Energy,
	}
}
