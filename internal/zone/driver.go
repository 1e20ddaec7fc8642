package zone

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
)

// InvalidPolicy decides what Run does with a row that fails validation.
type InvalidPolicy int

const (
	// AbortOnInvalid ends the run with the error.
	AbortOnInvalid InvalidPolicy = iota
	// SkipInvalid drops the row and holds the previous state.
	SkipInvalid
)

func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnInvalid, nil
	case "skip":
		return SkipInvalid, nil
	default:
		return AbortOnInvalid, fmt.Errorf("invalid input policy: %q", s)
	}
}

// StepSource decides how Run sizes each step.
type StepSource int

const (
	// StepFixed advances every row by the configured step and only checks
	// that timestamps do not go backwards.
	StepFixed StepSource = iota
	// StepCadence advances by the configured step and rejects, as invalid
	// input, a row whose distance to the previous row is not that step.
	StepCadence
	// StepTimestamps advances by the gap between the row and the state time.
	// The first row of a run starting from a zero time uses the configured
	// step.
	StepTimestamps
)

// RunOptions tune Driver.Run.
type RunOptions struct {
	OnInvalid InvalidPolicy
	Steps     StepSource
	// Skipped, when set, is called for every row dropped under SkipInvalid.
	Skipped func(err error)
}

// Driver advances a State one input row at a time with forward Euler. It
// holds no state of its own; the same inputs always give the same outputs.
type Driver struct {
	params     Params
	thermal    ThermalNetwork
	co2        CO2Model
	controller Controller
	energy     EnergyAccountant
}

func NewDriver(p Params) (*Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		params:     p,
		thermal:    NewThermalNetwork(p),
		co2:        NewCO2Model(p),
		controller: NewController(p),
		energy:     NewEnergyAccountant(p),
	}, nil
}

func (d *Driver) Params() Params { return d.params }

// Step advances s by the configured step duration.
func (d *Driver) Step(s State, in InputRow) (State, OutputRow, error) {
	return d.Advance(s, in, d.params.Step)
}

// Advance advances s by dt, typically derived from consecutive input
// timestamps. On error s is returned unchanged.
func (d *Driver) Advance(s State, in InputRow, dt time.Duration) (State, OutputRow, error) {
	if dt <= 0 {
		return s, OutputRow{}, fmt.Errorf("step=%s: %w", dt, ErrInvalidStep)
	}
	if err := d.checkInput(s, in); err != nil {
		return s, OutputRow{}, err
	}

	// 1. effective setpoint
	setpoint := d.params.Setpoint
	if in.SetpointOverride != nil {
		setpoint = *in.SetpointOverride
	}

	// 2. control decision on the current air temperature
	mode := d.controller.Decide(s.AirTemperature, setpoint, d.params.Deadband, s.Mode)
	q := HeatFlow(mode, d.params.RatedCapacity)

	// 3. thermal network
	gain := in.SolarGain + float64(in.Occupancy)*d.params.InternalGainPerOccupant
	dAir, dWall := d.thermal.Derivatives(s.AirTemperature, s.WallTemperature, in.OutdoorTemperature, gain, q)

	// 4. CO2
	dCO2, err := d.co2.Derivative(s.CO2, in.Occupancy)
	if err != nil {
		return s, OutputRow{}, err
	}

	// 5. energy
	power := d.energy.Power(mode, q)

	// 6. Euler update
	sec := dt.Seconds()
	next := State{
		Time:            in.Timestamp,
		AirTemperature:  s.AirTemperature + sec*dAir,
		WallTemperature: s.WallTemperature + sec*dWall,
		CO2:             d.co2.Floor(s.CO2, s.CO2+sec*dCO2),
		Mode:            mode,
		Energy:          d.energy.Accumulate(s.Energy, power, dt),
	}
	if err := d.checkBounds(next); err != nil {
		return s, OutputRow{}, err
	}

	// 7. output
	return next, OutputRow{
		Timestamp:       next.Time,
		AirTemperature:  next.AirTemperature,
		WallTemperature: next.WallTemperature,
		CO2:             next.CO2,
		Mode:            next.Mode,
		Power:           power,
		Energy:          next.Energy,
		Setpoint:        setpoint,
	}, nil
}

// Run lazily steps through rows starting from initial. A source error that
// wraps ErrInvalidInput is treated like an invalid row; any other source
// error, and every stability error, ends the sequence after being yielded.
func (d *Driver) Run(initial State, rows iter.Seq2[InputRow, error], opts RunOptions) iter.Seq2[OutputRow, error] {
	return func(yield func(OutputRow, error) bool) {
		s := initial
		// last timestamp seen, skipped rows included
		prev := initial.Time
		for in, err := range rows {
			if opts.Steps == StepCadence {
				if err == nil {
					err = d.checkCadence(prev, in.Timestamp)
				}
				// a rejected row still marks its slot when its time is known
				if in.Timestamp.After(prev) {
					prev = in.Timestamp
				}
			}
			if err == nil {
				var out OutputRow
				var next State
				dt := d.params.Step
				if opts.Steps == StepTimestamps {
					dt = TimestampStep(s, in, d.params.Step)
				}
				next, out, err = d.Advance(s, in, dt)
				if err == nil {
					s = next
					if !yield(out, nil) {
						return
					}
					continue
				}
			}
			if opts.OnInvalid == SkipInvalid && errors.Is(err, ErrInvalidInput) {
				if opts.Skipped != nil {
					opts.Skipped(err)
				}
				continue
			}
			yield(OutputRow{}, err)
			return
		}
	}
}

// TimestampStep returns the gap between in and the state time, or fallback
// when the state has no time yet or the gap is not positive.
func TimestampStep(s State, in InputRow, fallback time.Duration) time.Duration {
	if s.Time.IsZero() {
		return fallback
	}
	if gap := in.Timestamp.Sub(s.Time); gap > 0 {
		return gap
	}
	return fallback
}

func (d *Driver) checkCadence(prev, t time.Time) error {
	if prev.IsZero() {
		return nil
	}
	if t.Before(prev) {
		return fmt.Errorf("%w: %w: %s before %s", ErrInvalidInput, ErrOutOfOrder,
			t.Format(time.RFC3339), prev.Format(time.RFC3339))
	}
	if gap := t.Sub(prev); gap != d.params.Step {
		return fmt.Errorf("%w: %w: %s after the previous row, step is %s",
			ErrInvalidInput, ErrCadence, gap, d.params.Step)
	}
	return nil
}

func (d *Driver) checkInput(s State, in InputRow) error {
	if !s.Time.IsZero() && in.Timestamp.Before(s.Time) {
		return fmt.Errorf("%w: %w: %s before %s", ErrInvalidInput, ErrOutOfOrder,
			in.Timestamp.Format(time.RFC3339), s.Time.Format(time.RFC3339))
	}
	if !finite(in.OutdoorTemperature) || !finite(in.SolarGain) {
		return fmt.Errorf("%w: outdoor temperature and solar gain must be finite", ErrInvalidInput)
	}
	if in.Occupancy < 0 {
		return fmt.Errorf("%w: occupancy %d is negative", ErrInvalidInput, in.Occupancy)
	}
	if in.SetpointOverride != nil {
		if err := d.params.CheckSetpoint(*in.SetpointOverride); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

func (d *Driver) checkBounds(s State) error {
	b := d.params.Bounds
	check := func(name string, v, lo, hi float64) error {
		switch {
		case math.IsNaN(v) || v > hi:
			return &StabilityError{Time: s.Time, Variable: name, Value: v, Bound: hi}
		case v < lo:
			return &StabilityError{Time: s.Time, Variable: name, Value: v, Bound: lo}
		}
		return nil
	}
	if err := check("air_temperature", s.AirTemperature, b.MinTemperature, b.MaxTemperature); err != nil {
		return err
	}
	if err := check("wall_temperature", s.WallTemperature, b.MinTemperature, b.MaxTemperature); err != nil {
		return err
	}
	return check("co2", s.CO2, 0, b.MaxCO2)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
