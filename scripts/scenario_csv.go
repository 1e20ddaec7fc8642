package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/timeseries"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

type SetpointCommand struct {
	IterationNumber int
	Value           float64
}

// SimulateZone drives a heat-pump zone through the synthetic day and writes
// the air temperature against the deadband, applying live setpoint commands
// at the given iterations.
func SimulateZone(iterations int, filename string, setpointCommands []SetpointCommand) error {
	params := zone.DefaultParams()
	params.Equipment = zone.EquipmentHeatPump
	params.Step = time.Minute

	initial := zone.State{
		AirTemperature:  20,
		WallTemperature: 20,
		CO2:             params.CO2Outdoor,
		Mode:            zone.ModeOff,
	}

	z, err := zone.New(params, initial)
	if err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Iteration", "Air", "Wall", "CO2", "Setpoint", "BandLow", "BandHigh", "Mode", "Power"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := timeseries.Synthetic(start, iterations, params.Step, nil)
	for i, in := range rows {
		for _, cmd := range setpointCommands {
			if cmd.IterationNumber == i+1 {
				if err := z.UpdateSetpoint(cmd.Value); err != nil {
					return fmt.Errorf("failed to update setpoint: %w", err)
				}
				break
			}
		}

		out, err := z.Step(in)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		half := params.Deadband / 2
		if err := writer.Write([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", out.AirTemperature),
			fmt.Sprintf("%.2f", out.WallTemperature),
			fmt.Sprintf("%.0f", out.CO2),
			fmt.Sprintf("%.2f", out.Setpoint),
			fmt.Sprintf("%.2f", out.Setpoint-half),
			fmt.Sprintf("%.2f", out.Setpoint+half),
			out.Mode.String(),
			fmt.Sprintf("%.3f", out.Power),
		}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	return nil
}

func main() {
	commands := []SetpointCommand{
		{
			IterationNumber: 600,
			Value:           24.0,
		},
	}
	if err := SimulateZone(1440, "zonesim.csv", commands); err != nil {
		log.Fatal(err)
	}
}
