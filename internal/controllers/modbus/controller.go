package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/zonesim/internal/ports"
)

// Register map.
//
//	coil 0              setpoint override active (write 0 to clear, 0xFF00 to pin the current setpoint)
//	holding register 0  setpoint, °C x100
//	input registers 0-6 air °C x100, wall °C x100, CO2 ppm, mode, power kW x100,
//	                    energy kWh x100 (uint32, high word first)
const (
	HRSetpoint = 0

	IRAirTemperature  = 0
	IRWallTemperature = 1
	IRCO2             = 2
	IRMode            = 3
	IRPower           = 4
	IREnergyHigh      = 5
	IREnergyLow       = 6
	inputRegisters    = 7
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

type Controller struct {
	svc ports.ZoneService
	cfg Config

	serv *mbserver.Server
}

func New(svc ports.ZoneService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{svc: svc, cfg: cfg}, nil
}

// Run starts the Modbus server with handlers that read from and write to the
// zone directly. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Handlers are registered before the listener starts; mbserver reads its
	// handler table from the connection goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(3, c.readHoldingRegisters)
	serv.RegisterFunctionHandler(4, c.readInputRegisters)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)
	serv.RegisterFunctionHandler(6, c.writeSingleRegister)
	serv.RegisterFunctionHandler(16, c.writeMultipleRegisters)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRequest(frame, 2000)
	if exc != nil {
		return []byte{}, exc
	}
	if start != 0 || qty != 1 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	coil := byte(0)
	if c.svc.Get().SetpointOverride != nil {
		coil = 0x01
	}
	return []byte{1, coil}, &mbserver.Success
}

func (c *Controller) readHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRequest(frame, 125)
	if exc != nil {
		return []byte{}, exc
	}
	if start != HRSetpoint || qty != 1 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	return registerResponse([]uint16{encodeTemp(c.svc.Get().Setpoint)}), &mbserver.Success
}

func (c *Controller) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRequest(frame, 125)
	if exc != nil {
		return []byte{}, exc
	}
	if start+qty > inputRegisters {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	snap := c.svc.Get()
	energy := encodeEnergy(snap.State.Energy)
	all := [inputRegisters]uint16{
		IRAirTemperature:  encodeTemp(snap.State.AirTemperature),
		IRWallTemperature: encodeTemp(snap.State.WallTemperature),
		IRCO2:             encodeUnsigned(snap.State.CO2, 1),
		IRMode:            uint16(snap.State.Mode),
		IRPower:           encodeUnsigned(snap.Last.Power, PowerScale),
		IREnergyHigh:      uint16(energy >> 16),
		IREnergyLow:       uint16(energy),
	}
	return registerResponse(all[start : start+qty]), &mbserver.Success
}

func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if addr != 0 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	switch value {
	case 0x0000:
		c.svc.ClearSetpoint()
	case 0xFF00:
		if err := c.svc.UpdateSetpoint(c.svc.Get().Setpoint); err != nil {
			return []byte{}, &mbserver.IllegalDataValue
		}
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) writeSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if exc := c.writeRegister(int(addr), value); exc != nil {
		return []byte{}, exc
	}
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) writeMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	for i := 0; i < int(quantity); i++ {
		val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
		if exc := c.writeRegister(int(start)+i, val); exc != nil {
			return []byte{}, exc
		}
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeRegister(addr int, value uint16) *mbserver.Exception {
	if addr != HRSetpoint {
		return &mbserver.IllegalDataAddress
	}
	if err := c.svc.UpdateSetpoint(decodeTemp(value)); err != nil {
		return &mbserver.IllegalDataValue
	}
	return nil
}

func readRequest(frame mbserver.Framer, maxQty int) (start, qty int, exc *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > maxQty {
		return 0, 0, &mbserver.IllegalDataValue
	}
	return start, qty, nil
}

// registerResponse builds byte count + register bytes.
func registerResponse(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

const (
	TemperatureScale int = 100
	PowerScale           = 100
	EnergyScale          = 100
)

func encodeTemp(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(TemperatureScale)
}

func encodeUnsigned(v float64, scale int) uint16 {
	r := min(max(math.Round(v*float64(scale)), 0), math.MaxUint16)
	return uint16(r)
}

func encodeEnergy(v float64) uint32 {
	r := min(max(math.Round(v*EnergyScale), 0), math.MaxUint32)
	return uint32(r)
}
