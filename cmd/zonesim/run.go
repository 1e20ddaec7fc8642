package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/Agrid-Dev/zonesim/cmd/app"
	"github.com/Agrid-Dev/zonesim/internal/sink"
	"github.com/Agrid-Dev/zonesim/internal/timeseries"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

type runOptions struct {
	input       string
	output      string
	synthetic   bool
	rows        int
	start       string
	setpoint    float64
	skipInvalid bool
	progress    bool
}

func runCmd(configPath *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a whole input series and write the output CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if opts.skipInvalid {
				cfg.Simulation.OnInvalid = "skip"
			}
			lg, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer lg.Close()

			var setpoint *float64
			if cmd.Flags().Changed("setpoint") {
				setpoint = &opts.setpoint
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runBatch(ctx, cfg, opts, setpoint, lg.Logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "input CSV (timestamp, outdoor_temperature_C, solar_gain_kW, occupancy_count[, setpoint_override_C])")
	f.StringVarP(&opts.output, "output", "o", "-", "output CSV, - for stdout")
	f.BoolVar(&opts.synthetic, "synthetic", false, "simulate the built-in demo day instead of an input file")
	f.IntVar(&opts.rows, "rows", timeseries.DemoRows, "number of synthetic rows")
	f.StringVar(&opts.start, "start", "", "first synthetic timestamp (RFC 3339), default today 00:00 UTC")
	f.Float64Var(&opts.setpoint, "setpoint", 0, "setpoint override applied to every synthetic row")
	f.BoolVar(&opts.skipInvalid, "skip-invalid", false, "drop invalid rows instead of aborting")
	f.BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")
	cmd.MarkFlagsMutuallyExclusive("input", "synthetic")
	return cmd
}

// rowResult keeps a read error in sequence with the rows around it.
type rowResult struct {
	row zone.InputRow
	err error
}

func runBatch(ctx context.Context, cfg app.Config, opts runOptions, setpoint *float64, log *slog.Logger) error {
	params, err := cfg.ZoneParams()
	if err != nil {
		return err
	}
	initial, err := cfg.InitialState()
	if err != nil {
		return err
	}
	policy, err := cfg.InvalidPolicy()
	if err != nil {
		return err
	}
	driver, err := zone.NewDriver(params)
	if err != nil {
		return err
	}

	if limit, ok := zone.StabilityLimit(params); ok && params.Step >= limit {
		log.Warn("step exceeds the explicit Euler stability limit",
			"step", params.Step, "limit", limit.Round(time.Second))
	}

	inputs, err := loadInputs(opts, params.Step, setpoint)
	if err != nil {
		return err
	}

	var pub sink.Publisher
	if cfg.Sink.Kafka.Enabled {
		k, err := sink.NewKafka(sink.Config{
			Brokers:  cfg.Sink.Kafka.Brokers,
			Topic:    cfg.Sink.Kafka.Topic,
			DeviceID: cfg.DeviceID,
			RunID:    uuid.NewString(),
			Timeout:  cfg.Sink.Kafka.Timeout,
		})
		if err != nil {
			return err
		}
		defer k.Close()
		pub = k
	}

	var bar *pb.ProgressBar
	if opts.progress {
		bar = pb.New(len(inputs))
		bar.Output = os.Stderr
		bar.ShowTimeLeft = false
		bar.Start()
	}

	var skipped int
	rows := make([]zone.OutputRow, 0, len(inputs))
	runOpts := zone.RunOptions{
		OnInvalid: policy,
		Steps:     zone.StepCadence,
		Skipped: func(err error) {
			skipped++
			if bar != nil {
				bar.Increment()
			}
			log.Warn("row skipped", "err", err)
		},
	}
	if cfg.Simulation.TimestampStep {
		runOpts.Steps = zone.StepTimestamps
	}
	for out, err := range driver.Run(initial, replay(inputs), runOpts) {
		if err != nil {
			if bar != nil {
				bar.Finish()
			}
			return fmt.Errorf("simulation stopped after %d rows: %w", len(rows), err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rows = append(rows, out)
		if pub != nil {
			if err := pub.Publish(ctx, out); err != nil {
				log.Warn("publish failed", "component", "sink", "err", err)
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.FinishPrint(fmt.Sprintf("simulated %d rows", len(rows)))
	}

	if err := writeOutputs(opts.output, rows, cfg.Simulation.Lookahead); err != nil {
		return err
	}

	for _, h := range timeseries.HourlyEnergy(rows, initial.Energy) {
		log.Debug("hourly energy", "hour", h.Hour.Format(time.RFC3339), "kwh", h.Energy)
	}
	sum := timeseries.Summarize(initial, rows)
	log.Info("run complete",
		"steps", sum.Steps,
		"skipped", skipped,
		"mean_air_c", sum.MeanAir,
		"stddev_air_c", sum.StdDevAir,
		"min_air_c", sum.MinAir,
		"max_air_c", sum.MaxAir,
		"peak_co2_ppm", sum.PeakCO2,
		"peak_power_kw", sum.PeakPower,
		"energy_kwh", sum.Energy,
		"mode_changes", sum.ModeChanges,
	)
	return nil
}

func loadInputs(opts runOptions, step time.Duration, setpoint *float64) ([]rowResult, error) {
	if opts.synthetic {
		start := time.Now().UTC().Truncate(24 * time.Hour)
		if opts.start != "" {
			t, err := time.Parse(time.RFC3339, opts.start)
			if err != nil {
				return nil, fmt.Errorf("--start: %w", err)
			}
			start = t
		}
		var out []rowResult
		for _, r := range timeseries.Synthetic(start, opts.rows, step, setpoint) {
			out = append(out, rowResult{row: r})
		}
		return out, nil
	}
	if opts.input == "" {
		return nil, errors.New("either --input or --synthetic is required")
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAll(f)
}

// readAll drains a CSV source. Row-level errors stay in the slice for the
// driver to abort or skip on; the header and I/O errors end the read.
func readAll(r io.Reader) ([]rowResult, error) {
	var out []rowResult
	for row, err := range timeseries.ReadCSV(r) {
		if err != nil && !errors.Is(err, zone.ErrInvalidInput) {
			return nil, err
		}
		out = append(out, rowResult{row: row, err: err})
	}
	return out, nil
}

func replay(in []rowResult) iter.Seq2[zone.InputRow, error] {
	return func(yield func(zone.InputRow, error) bool) {
		for _, r := range in {
			if !yield(r.row, r.err) {
				return
			}
		}
	}
}

func writeOutputs(path string, rows []zone.OutputRow, horizon time.Duration) error {
	var w io.Writer = os.Stdout
	if path != "-" && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeCSV(w, rows, horizon)
}

func writeCSV(w io.Writer, rows []zone.OutputRow, horizon time.Duration) error {
	lookahead := horizon > 0
	var ahead []timeseries.Ahead
	if lookahead {
		ahead = timeseries.Lookahead(rows, horizon)
	}
	cw := timeseries.NewCSVWriter(w, lookahead)
	for i, row := range rows {
		var a timeseries.Ahead
		if lookahead {
			a = ahead[i]
		}
		if err := cw.Write(row, a); err != nil {
			return err
		}
	}
	return cw.Flush()
}
