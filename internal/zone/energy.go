package zone

import "time"

// EnergyAccountant turns the HVAC mode into electrical power and integrates it.
type EnergyAccountant struct {
	cop          float64
	fan          float64
	idleFraction float64
}

func NewEnergyAccountant(p Params) EnergyAccountant {
	return EnergyAccountant{cop: p.COP, fan: p.FanCoefficient, idleFraction: p.IdleFraction}
}

// Power returns the instantaneous electrical draw in kW: compressor power
// |Q|/COP while active plus a cube-law fan term.
func (a EnergyAccountant) Power(m Mode, qHVAC float64) float64 {
	compressor := 0.0
	airflow := a.idleFraction
	if m.Active() {
		if qHVAC < 0 {
			qHVAC = -qHVAC
		}
		compressor = qHVAC / a.cop
		airflow = 1
	}
	return compressor + a.fan*airflow*airflow*airflow
}

// Accumulate adds power (kW) drawn over dt to energy (kWh).
func (a EnergyAccountant) Accumulate(energy, power float64, dt time.Duration) float64 {
	if power <= 0 || dt <= 0 {
		return energy
	}
	return energy + power*dt.Hours()
}
