package zone

// kJ per MJ. Capacitances are configured in MJ/K and heat flows are in kW
// (kJ/s), so derivatives come out in K/s.
const kilojoulesPerMegajoule = 1000.0

// ThermalNetwork is the 3R-2C network between outdoor air, the lumped wall
// mass and the indoor air node.
type ThermalNetwork struct {
	r1, r2, r3  float64
	cAir, cWall float64 // kJ/K
}

func NewThermalNetwork(p Params) ThermalNetwork {
	return ThermalNetwork{
		r1:    p.R1,
		r2:    p.R2,
		r3:    p.R3,
		cAir:  p.CAir * kilojoulesPerMegajoule,
		cWall: p.CWall * kilojoulesPerMegajoule,
	}
}

// Derivatives returns dT_air/dt and dT_wall/dt in K/s. gain is the sum of
// solar and internal gains and qHVAC the signed HVAC heat flow, both in kW.
func (n ThermalNetwork) Derivatives(tAir, tWall, tOut, gain, qHVAC float64) (dAir, dWall float64) {
	wallToAir := (tWall - tAir) / n.r2
	dWall = ((tOut-tWall)/n.r1 - wallToAir) / n.cWall
	dAir = (wallToAir + (tOut-tAir)/n.r3 + gain + qHVAC) / n.cAir
	return dAir, dWall
}

// HeatFlow is the HVAC heat flow implied by a mode: positive adds heat.
func HeatFlow(m Mode, ratedCapacity float64) float64 {
	switch m {
	case ModeHeating:
		return ratedCapacity
	case ModeCooling:
		return -ratedCapacity
	default:
		return 0
	}
}
