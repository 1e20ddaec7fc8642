package ports

import "github.com/Agrid-Dev/zonesim/internal/zone"

// ZoneService is the control-plane port used by controllers (HTTP/MQTT/Modbus)
// and the decorators wrapped around them.
type ZoneService interface {
	Get() zone.Snapshot
	UpdateSetpoint(float64) error
	ClearSetpoint()
	Step(zone.InputRow) (zone.OutputRow, error)
}
