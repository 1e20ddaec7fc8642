package zone

import "fmt"

const (
	secondsPerHour = 3600.0
	// 1 L/s of pure CO2 spread over 1 m³ is 1000 ppm/s.
	ppmPerLitrePerCubicMetre = 1000.0
)

// CO2Model is a well-mixed box model of the zone air.
type CO2Model struct {
	generation   float64 // ppm·m³/s per occupant
	infiltration float64 // m³/s
	outdoor      float64 // ppm
	volume       float64 // m³
}

func NewCO2Model(p Params) CO2Model {
	return CO2Model{
		generation:   p.CO2GenerationRate * ppmPerLitrePerCubicMetre,
		infiltration: p.InfiltrationRate * p.ZoneVolume / secondsPerHour,
		outdoor:      p.CO2Outdoor,
		volume:       p.ZoneVolume,
	}
}

// Derivative returns dCO2/dt in ppm/s.
func (m CO2Model) Derivative(co2 float64, occupants int) (float64, error) {
	if occupants < 0 {
		return 0, fmt.Errorf("%w: occupancy %d is negative", ErrInvalidInput, occupants)
	}
	return (m.generation*float64(occupants) - m.infiltration*(co2-m.outdoor)) / m.volume, nil
}

// Floor keeps a concentration that started at or above ambient from being
// drawn below it by an Euler overshoot.
func (m CO2Model) Floor(prev, next float64) float64 {
	if prev >= m.outdoor && next < m.outdoor {
		return m.outdoor
	}
	return next
}
