package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/zonesim/cmd/app"
	"github.com/Agrid-Dev/zonesim/internal/logging"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "zonesim",
		Short:         "Single-zone thermal, CO2 and HVAC simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (.yaml/.yml/.json)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(configCmd(&configPath))
	rootCmd.AddCommand(limitsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zonesim:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (app.Config, error) {
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return app.Config{}, err
	}
	app.ApplyEnvOverrides(&cfg)
	return cfg, nil
}

func newLogger(cfg app.Config) (*logging.Logger, error) {
	lg, err := logging.New(cfg.Log.Level, cfg.Log.File, os.Stderr)
	if err != nil {
		return nil, err
	}
	lg.Logger = lg.With("device_id", cfg.DeviceID)
	return lg, nil
}

func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func limitsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print the explicit-Euler step limit and the network time constants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			p, err := cfg.ZoneParams()
			if err != nil {
				return err
			}
			printLimits(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func printLimits(w io.Writer, p zone.Params) {
	limit, ok := zone.StabilityLimit(p)
	switch {
	case !ok:
		fmt.Fprintln(w, "stability limit: unknown")
	case limit == math.MaxInt64:
		fmt.Fprintln(w, "stability limit: none")
	default:
		fmt.Fprintf(w, "stability limit: %s\n", limit.Round(time.Second))
	}
	fmt.Fprintf(w, "configured step: %s", p.Step)
	if ok && p.Step >= limit {
		fmt.Fprint(w, " (unstable)")
	}
	fmt.Fprintln(w)

	wo, wa, aw, ao := zone.TimeConstants(p)
	fmt.Fprintf(w, "tau wall->outdoor: %s\n", wo.Round(time.Second))
	fmt.Fprintf(w, "tau wall->air:     %s\n", wa.Round(time.Second))
	fmt.Fprintf(w, "tau air->wall:     %s\n", aw.Round(time.Second))
	fmt.Fprintf(w, "tau air->outdoor:  %s\n", ao.Round(time.Second))
}
