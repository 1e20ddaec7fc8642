package zone

import (
	"context"
	"sync"
)

// Snapshot is a consistent view of a Zone between two steps.
type Snapshot struct {
	State            State
	Setpoint         float64  // setpoint the next step will use unless the row overrides it
	SetpointOverride *float64 // live override, nil when the configured setpoint applies
	Last             OutputRow
	Steps            uint64
}

// Zone holds the single State of a live run and serialises access to it, so
// transports can feed rows and setpoint updates from their own goroutines.
type Zone struct {
	mu sync.RWMutex

	driver   *Driver
	state    State
	override *float64
	last     OutputRow
	steps    uint64

	timestampStep bool
}

type Option func(*Zone)

// WithTimestampStep derives each step's duration from the gap between
// consecutive input timestamps instead of the configured step. The first row,
// and any row with the same timestamp as the previous one, use the configured
// step.
func WithTimestampStep() Option {
	return func(z *Zone) { z.timestampStep = true }
}

func New(params Params, initial State, opts ...Option) (*Zone, error) {
	d, err := NewDriver(params)
	if err != nil {
		return nil, err
	}
	if err := params.ValidateState(initial); err != nil {
		return nil, err
	}
	z := &Zone{driver: d, state: initial}
	for _, o := range opts {
		o(z)
	}
	return z, nil
}

func (z *Zone) Params() Params { return z.driver.Params() }

func (z *Zone) Get() Snapshot {
	z.mu.RLock()
	defer z.mu.RUnlock()
	p := z.driver.Params()
	s := Snapshot{
		State:    z.state,
		Setpoint: p.Setpoint,
		Last:     z.last,
		Steps:    z.steps,
	}
	if z.override != nil {
		v := *z.override
		s.Setpoint = v
		s.SetpointOverride = &v
	}
	return s
}

// UpdateSetpoint overrides the configured setpoint from the next step on,
// until ClearSetpoint is called. A setpoint carried by an input row still
// wins for that row.
func (z *Zone) UpdateSetpoint(sp float64) error {
	p := z.driver.Params()
	if err := p.CheckSetpoint(sp); err != nil {
		return err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.override = &sp
	return nil
}

func (z *Zone) ClearSetpoint() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.override = nil
}

// Step applies one input row. On error the state is left untouched.
func (z *Zone) Step(in InputRow) (OutputRow, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if in.SetpointOverride == nil && z.override != nil {
		v := *z.override
		in.SetpointOverride = &v
	}
	dt := z.driver.Params().Step
	if z.timestampStep {
		dt = TimestampStep(z.state, in, dt)
	}
	next, out, err := z.driver.Advance(z.state, in, dt)
	if err != nil {
		return OutputRow{}, err
	}
	z.state = next
	z.last = out
	z.steps++
	return out, nil
}

// Restore re-seeds the zone with a last-known-good state, e.g. after a
// transport outage. The last output and the step count start over.
func (z *Zone) Restore(s State) error {
	p := z.driver.Params()
	if err := p.ValidateState(s); err != nil {
		return err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.state = s
	z.last = OutputRow{}
	z.steps = 0
	return nil
}

// Run steps every row received on rows until the channel is closed or ctx is
// done. emit is called after each row with its output or error.
func (z *Zone) Run(ctx context.Context, rows <-chan InputRow, emit func(OutputRow, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-rows:
			if !ok {
				return nil
			}
			out, err := z.Step(in)
			if emit != nil {
				emit(out, err)
			}
		}
	}
}
