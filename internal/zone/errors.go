package zone

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidMode        = errors.New("invalid hvac mode")
	ErrInvalidEquipment   = errors.New("invalid equipment type")
	ErrInvalidResistance  = errors.New("thermal resistances must be strictly positive")
	ErrInvalidCapacitance = errors.New("thermal capacitances must be strictly positive")
	ErrInvalidCOP         = errors.New("COP must be strictly positive")
	ErrInvalidCapacity    = errors.New("rated capacity must be greater or equal to zero")
	ErrInvalidFan         = errors.New("fan coefficient must be >= 0 and idle fraction within [0,1]")
	ErrInvalidCO2Params   = errors.New("invalid CO2 parameters")
	ErrInvalidDeadband    = errors.New("deadband must be greater or equal to zero")
	ErrInvalidStep        = errors.New("step duration must be strictly positive")
	ErrInvalidMinMax      = errors.New("invalid min/max setpoints")
	ErrSetpointOutOfRange = errors.New("setpoint out of range")
	ErrInvalidBounds      = errors.New("invalid stability bounds")
	ErrInvalidState       = errors.New("invalid simulation state")

	ErrInvalidInput = errors.New("invalid input")
	ErrOutOfOrder   = errors.New("input row older than simulation time")
	ErrCadence      = errors.New("input row spacing does not match the step duration")
	ErrUnstable     = errors.New("numerical instability")
)

// StabilityError reports a state variable that left its physical bound after
// a step. It usually means the step is too long for the network's time
// constants.
type StabilityError struct {
	Time     time.Time
	Variable string
	Value    float64
	Bound    float64
}

func (e *StabilityError) Error() string {
	return fmt.Sprintf("%s: %s=%g beyond bound %g at %s",
		ErrUnstable, e.Variable, e.Value, e.Bound, e.Time.Format(time.RFC3339))
}

func (e *StabilityError) Unwrap() error { return ErrUnstable }
