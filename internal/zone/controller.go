package zone

// Controller is an on/off hysteresis thermostat.
type Controller struct {
	equipment Equipment
}

func NewController(p Params) Controller {
	return Controller{equipment: p.Equipment}
}

// Decide returns the mode for the next step. Inside the deadband the
// previous mode is kept, so a temperature that stays strictly inside it never
// causes a change, unless the equipment cannot run in that mode. Crossing the
// far edge while running in the opposite direction always passes through off.
func (c Controller) Decide(tAir, setpoint, deadband float64, prev Mode) Mode {
	half := deadband / 2
	switch {
	case tAir < setpoint-half:
		if prev == ModeCooling || !c.equipment.CanHeat() {
			return ModeOff
		}
		return ModeHeating
	case tAir > setpoint+half:
		if prev == ModeHeating || !c.equipment.CanCool() {
			return ModeOff
		}
		return ModeCooling
	default:
		if !c.equipment.Allows(prev) {
			return ModeOff
		}
		return prev
	}
}
