package device

import (
	"github.com/google/uuid"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// Device is one simulated zone exposed under a stable identifier. RunID
// changes on every process start so downstream consumers can tell runs apart.
type Device struct {
	ID    string
	RunID string
	Z     *zone.Zone
}

func New(id string, z *zone.Zone) *Device {
	return &Device{ID: id, RunID: uuid.NewString(), Z: z}
}
