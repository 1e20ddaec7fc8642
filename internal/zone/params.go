package zone

import (
	"fmt"
	"math"
	"time"
)

// Bounds are the physical limits a state variable may reach before a step is
// reported as unstable.
type Bounds struct {
	MinTemperature float64 // °C
	MaxTemperature float64 // °C
	MaxCO2         float64 // ppm
}

// Params is the immutable parameter set of a run. Components copy what they
// need at construction.
type Params struct {
	R1 float64 // outdoor <-> wall, K/kW
	R2 float64 // wall <-> indoor air, K/kW
	R3 float64 // outdoor <-> indoor air (windows, infiltration), K/kW

	CWall float64 // MJ/K
	CAir  float64 // MJ/K

	RatedCapacity  float64 // kW thermal while heating or cooling
	COP            float64
	FanCoefficient float64 // kW at full airflow
	IdleFraction   float64 // airflow fraction while off, 0..1

	CO2GenerationRate float64 // L/s per occupant
	InfiltrationRate  float64 // air changes per hour
	CO2Outdoor        float64 // ppm
	ZoneVolume        float64 // m³

	InternalGainPerOccupant float64 // kW per occupant

	Setpoint    float64 // °C
	Deadband    float64 // °C, full width around the setpoint
	SetpointMin float64
	SetpointMax float64
	Equipment   Equipment

	Step   time.Duration
	Bounds Bounds
}

// DefaultParams returns a small office zone with a heating-only unit.
func DefaultParams() Params {
	return Params{
		R1:                      2.0,
		R2:                      1.6,
		R3:                      3.0,
		CWall:                   15,
		CAir:                    3,
		RatedCapacity:           5,
		COP:                     3.5,
		FanCoefficient:          1.2,
		IdleFraction:            0,
		CO2GenerationRate:       0.005,
		InfiltrationRate:        0.4,
		CO2Outdoor:              400,
		ZoneVolume:              240,
		InternalGainPerOccupant: 0.1,
		Setpoint:                21,
		Deadband:                1,
		SetpointMin:             5,
		SetpointMax:             35,
		Equipment:               EquipmentHeating,
		Step:                    5 * time.Minute,
		Bounds: Bounds{
			MinTemperature: -60,
			MaxTemperature: 100,
			MaxCO2:         50000,
		},
	}
}

func (p *Params) Validate() error {
	if !(p.R1 > 0 && p.R2 > 0 && p.R3 > 0) {
		return fmt.Errorf("r1=%g r2=%g r3=%g: %w", p.R1, p.R2, p.R3, ErrInvalidResistance)
	}
	if !(p.CWall > 0 && p.CAir > 0) {
		return fmt.Errorf("c_wall=%g c_air=%g: %w", p.CWall, p.CAir, ErrInvalidCapacitance)
	}
	if !(p.COP > 0) {
		return fmt.Errorf("cop=%g: %w", p.COP, ErrInvalidCOP)
	}
	if !(p.RatedCapacity >= 0) {
		return fmt.Errorf("rated_capacity=%g: %w", p.RatedCapacity, ErrInvalidCapacity)
	}
	if !(p.FanCoefficient >= 0) || !(p.IdleFraction >= 0 && p.IdleFraction <= 1) {
		return fmt.Errorf("fan_coefficient=%g idle_fraction=%g: %w", p.FanCoefficient, p.IdleFraction, ErrInvalidFan)
	}
	if !(p.CO2GenerationRate >= 0) || !(p.InfiltrationRate >= 0) || !(p.CO2Outdoor >= 0) || !(p.ZoneVolume > 0) {
		return ErrInvalidCO2Params
	}
	if !(p.Deadband >= 0) {
		return fmt.Errorf("deadband=%g: %w", p.Deadband, ErrInvalidDeadband)
	}
	if p.Step <= 0 {
		return fmt.Errorf("step=%s: %w", p.Step, ErrInvalidStep)
	}
	if !p.Equipment.Valid() {
		return ErrInvalidEquipment
	}
	if p.SetpointMin > p.SetpointMax {
		return ErrInvalidMinMax
	}
	if p.Setpoint < p.SetpointMin || p.Setpoint > p.SetpointMax || math.IsNaN(p.Setpoint) {
		return ErrSetpointOutOfRange
	}
	if !(p.Bounds.MinTemperature < p.Bounds.MaxTemperature) || !(p.Bounds.MaxCO2 > p.CO2Outdoor) {
		return ErrInvalidBounds
	}
	return nil
}

// CheckSetpoint validates a live or per-row setpoint override.
func (p *Params) CheckSetpoint(sp float64) error {
	if math.IsNaN(sp) || sp < p.SetpointMin || sp > p.SetpointMax {
		return fmt.Errorf("setpoint %g not within [%g, %g]: %w", sp, p.SetpointMin, p.SetpointMax, ErrSetpointOutOfRange)
	}
	return nil
}

// ValidateState checks initial conditions supplied by a caller.
func (p *Params) ValidateState(s State) error {
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrInvalidMode)
	}
	if !p.Equipment.Allows(s.Mode) {
		return fmt.Errorf("%w: %w: %s equipment cannot run in %s mode",
			ErrInvalidState, ErrInvalidMode, p.Equipment, s.Mode)
	}
	for name, v := range map[string]float64{
		"air_temperature":  s.AirTemperature,
		"wall_temperature": s.WallTemperature,
		"co2":              s.CO2,
		"energy":           s.Energy,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidState, name)
		}
	}
	if s.CO2 < 0 || s.Energy < 0 {
		return fmt.Errorf("%w: co2 and energy must be >= 0", ErrInvalidState)
	}
	return nil
}
