package testutil

import (
	"time"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// FakeZoneService is a reusable fake implementing ports.ZoneService.
// Put ONLY what multiple test packages need here.
type FakeZoneService struct {
	S zone.Snapshot

	UpdateSetpointCalled bool
	UpdateSetpointArg    float64
	UpdateSetpointErr    error

	ClearSetpointCalled bool

	StepCalls []zone.InputRow
	StepOut   zone.OutputRow
	StepErr   error
}

func NewFakeZoneService() *FakeZoneService {
	last := zone.OutputRow{
		Timestamp:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		AirTemperature:  21.5,
		WallTemperature: 20.25,
		CO2:             612,
		Mode:            zone.ModeHeating,
		Power:           1.75,
		Energy:          3.5,
		Setpoint:        22,
	}
	return &FakeZoneService{
		S: zone.Snapshot{
			State:    last.State(),
			Setpoint: 22,
			Last:     last,
			Steps:    12,
		},
		StepOut: last,
	}
}

func (f *FakeZoneService) Get() zone.Snapshot { return f.S }

func (f *FakeZoneService) UpdateSetpoint(v float64) error {
	f.UpdateSetpointCalled = true
	f.UpdateSetpointArg = v
	if f.UpdateSetpointErr != nil {
		return f.UpdateSetpointErr
	}
	f.S.Setpoint = v
	f.S.SetpointOverride = &v
	return nil
}

func (f *FakeZoneService) ClearSetpoint() {
	f.ClearSetpointCalled = true
	f.S.SetpointOverride = nil
}

func (f *FakeZoneService) Step(in zone.InputRow) (zone.OutputRow, error) {
	f.StepCalls = append(f.StepCalls, in)
	if f.StepErr != nil {
		return zone.OutputRow{}, f.StepErr
	}
	out := f.StepOut
	out.Timestamp = in.Timestamp
	f.S.Last = out
	f.S.State = out.State()
	f.S.Steps++
	return out, nil
}
