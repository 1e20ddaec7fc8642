package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Agrid-Dev/zonesim/internal/zone"
)

// EnvPrefix marks environment variables read as config overrides, e.g.
// ZONESIM_PARAMS_C_AIR=4.5 or ZONESIM_CONTROLLERS_MQTT_BROKER_URL=tcp://broker:1883.
const EnvPrefix = "ZONESIM_"

type Config struct {
	DeviceID    string            `koanf:"device_id" yaml:"device_id"`
	Log         LogConfig         `koanf:"log" yaml:"log"`
	Params      ParamsConfig      `koanf:"params" yaml:"params"`
	Initial     InitialConfig     `koanf:"initial" yaml:"initial"`
	Simulation  SimulationConfig  `koanf:"simulation" yaml:"simulation"`
	Controllers ControllersConfig `koanf:"controllers" yaml:"controllers"`
	Sink        SinkConfig        `koanf:"sink" yaml:"sink"`
	Metrics     MetricsConfig     `koanf:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"` // debug | info | warn | error
	File  string `koanf:"file" yaml:"file"`
}

type ParamsConfig struct {
	R1    float64 `koanf:"r1" yaml:"r1"` // K/kW
	R2    float64 `koanf:"r2" yaml:"r2"`
	R3    float64 `koanf:"r3" yaml:"r3"`
	CAir  float64 `koanf:"c_air" yaml:"c_air"` // MJ/K
	CWall float64 `koanf:"c_wall" yaml:"c_wall"`

	RatedCapacity  float64 `koanf:"rated_capacity_kw" yaml:"rated_capacity_kw"`
	COP            float64 `koanf:"cop" yaml:"cop"`
	FanCoefficient float64 `koanf:"fan_coefficient" yaml:"fan_coefficient"`
	IdleFraction   float64 `koanf:"idle_fraction" yaml:"idle_fraction"`

	CO2GenerationRate float64 `koanf:"co2_generation_rate" yaml:"co2_generation_rate"` // L/s per person
	InfiltrationRate  float64 `koanf:"infiltration_rate" yaml:"infiltration_rate"`     // air changes per hour
	CO2Outdoor        float64 `koanf:"co2_outdoor_ppm" yaml:"co2_outdoor_ppm"`
	ZoneVolume        float64 `koanf:"zone_volume_m3" yaml:"zone_volume_m3"`
	InternalGain      float64 `koanf:"internal_gain_kw" yaml:"internal_gain_kw"` // per occupant

	Setpoint    float64 `koanf:"setpoint_c" yaml:"setpoint_c"`
	Deadband    float64 `koanf:"deadband_c" yaml:"deadband_c"`
	SetpointMin float64 `koanf:"setpoint_min_c" yaml:"setpoint_min_c"`
	SetpointMax float64 `koanf:"setpoint_max_c" yaml:"setpoint_max_c"`

	Equipment string        `koanf:"equipment" yaml:"equipment"` // heating | cooling | heat_pump
	Step      time.Duration `koanf:"step_duration" yaml:"step_duration"`

	Bounds BoundsConfig `koanf:"bounds" yaml:"bounds"`
}

type BoundsConfig struct {
	MinTemperature float64 `koanf:"min_temperature_c" yaml:"min_temperature_c"`
	MaxTemperature float64 `koanf:"max_temperature_c" yaml:"max_temperature_c"`
	MaxCO2         float64 `koanf:"max_co2_ppm" yaml:"max_co2_ppm"`
}

type InitialConfig struct {
	AirTemperature  float64 `koanf:"air_temperature_c" yaml:"air_temperature_c"`
	WallTemperature float64 `koanf:"wall_temperature_c" yaml:"wall_temperature_c"`
	CO2             float64 `koanf:"co2_ppm" yaml:"co2_ppm"`
	Mode            string  `koanf:"mode" yaml:"mode"`
	Energy          float64 `koanf:"energy_kwh" yaml:"energy_kwh"`
}

type SimulationConfig struct {
	OnInvalid     string        `koanf:"on_invalid" yaml:"on_invalid"` // abort | skip
	TimestampStep bool          `koanf:"timestamp_step" yaml:"timestamp_step"`
	Lookahead     time.Duration `koanf:"lookahead" yaml:"lookahead"` // 0 disables the lookahead columns
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
	Modbus ModbusConfig `koanf:"modbus" yaml:"modbus"`
}

type HTTPConfig struct {
	Enabled   bool   `koanf:"enabled" yaml:"enabled"`
	Addr      string `koanf:"addr" yaml:"addr"`
	AccessLog bool   `koanf:"access_log" yaml:"access_log"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" yaml:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot" yaml:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	Username        string        `koanf:"username" yaml:"username"`
	Password        string        `koanf:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

type SinkConfig struct {
	Kafka KafkaConfig `koanf:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool          `koanf:"enabled" yaml:"enabled"`
	Brokers []string      `koanf:"brokers" yaml:"brokers"`
	Topic   string        `koanf:"topic" yaml:"topic"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// DefaultConfig mirrors zone.DefaultParams with an HTTP controller on :8080.
func DefaultConfig() Config {
	p := zone.DefaultParams()
	return Config{
		DeviceID: "default",
		Log:      LogConfig{Level: "info"},
		Params: ParamsConfig{
			R1: p.R1, R2: p.R2, R3: p.R3,
			CAir: p.CAir, CWall: p.CWall,
			RatedCapacity:     p.RatedCapacity,
			COP:               p.COP,
			FanCoefficient:    p.FanCoefficient,
			IdleFraction:      p.IdleFraction,
			CO2GenerationRate: p.CO2GenerationRate,
			InfiltrationRate:  p.InfiltrationRate,
			CO2Outdoor:        p.CO2Outdoor,
			ZoneVolume:        p.ZoneVolume,
			InternalGain:      p.InternalGainPerOccupant,
			Setpoint:          p.Setpoint,
			Deadband:          p.Deadband,
			SetpointMin:       p.SetpointMin,
			SetpointMax:       p.SetpointMax,
			Equipment:         p.Equipment.String(),
			Step:              p.Step,
			Bounds: BoundsConfig{
				MinTemperature: p.Bounds.MinTemperature,
				MaxTemperature: p.Bounds.MaxTemperature,
				MaxCO2:         p.Bounds.MaxCO2,
			},
		},
		Initial: InitialConfig{
			AirTemperature:  p.Setpoint,
			WallTemperature: p.Setpoint,
			CO2:             p.CO2Outdoor,
			Mode:            zone.ModeOff.String(),
		},
		Simulation: SimulationConfig{OnInvalid: "abort", Lookahead: time.Hour},
		Controllers: ControllersConfig{
			HTTP:   HTTPConfig{Enabled: true, Addr: ":8080", AccessLog: true},
			MQTT:   MQTTConfig{BrokerURL: "tcp://localhost:1883", PublishInterval: time.Second},
			Modbus: ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1},
		},
		Sink: SinkConfig{Kafka: KafkaConfig{Topic: "zonesim.outputs", Timeout: 5 * time.Second}},
	}
}

// LoadConfig layers defaults, the file at path (YAML or JSON by extension; a
// missing file is not an error) and ZONESIM_* environment variables.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, err := parserFor(path)
			if err != nil {
				return Config{}, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), v
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "default"
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// envKeyTransform maps an environment key, prefix stripped, to a koanf path.
// Sections with a second level (controllers, sink, params.bounds) consume one
// more underscore; the rest of the key is the leaf name.
func envKeyTransform(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return ""
	}
	for _, nested := range []string{"controllers", "sink"} {
		if rest, ok := strings.CutPrefix(k, nested+"_"); ok {
			sub, leaf, ok := strings.Cut(rest, "_")
			if !ok {
				return k
			}
			return nested + "." + sub + "." + leaf
		}
	}
	if rest, ok := strings.CutPrefix(k, "params_bounds_"); ok {
		return "params.bounds." + rest
	}
	for _, section := range []string{"params", "initial", "log", "simulation", "metrics"} {
		if rest, ok := strings.CutPrefix(k, section+"_"); ok {
			return section + "." + rest
		}
	}
	return k
}

// ApplyEnvOverrides honours PORT (common in containers) unless the HTTP
// address was set explicitly.
func ApplyEnvOverrides(cfg *Config) {
	if os.Getenv(EnvPrefix+"CONTROLLERS_HTTP_ADDR") != "" {
		return
	}
	if v := os.Getenv("PORT"); v != "" {
		// listen on all interfaces on that port
		cfg.Controllers.HTTP.Addr = ":" + v
	}
}

func (c Config) ZoneParams() (zone.Params, error) {
	eq, err := zone.ParseEquipment(c.Params.Equipment)
	if err != nil {
		return zone.Params{}, err
	}
	pc := c.Params
	p := zone.Params{
		R1: pc.R1, R2: pc.R2, R3: pc.R3,
		CAir: pc.CAir, CWall: pc.CWall,
		RatedCapacity:           pc.RatedCapacity,
		COP:                     pc.COP,
		FanCoefficient:          pc.FanCoefficient,
		IdleFraction:            pc.IdleFraction,
		CO2GenerationRate:       pc.CO2GenerationRate,
		InfiltrationRate:        pc.InfiltrationRate,
		CO2Outdoor:              pc.CO2Outdoor,
		ZoneVolume:              pc.ZoneVolume,
		InternalGainPerOccupant: pc.InternalGain,
		Setpoint:                pc.Setpoint,
		Deadband:                pc.Deadband,
		SetpointMin:             pc.SetpointMin,
		SetpointMax:             pc.SetpointMax,
		Equipment:               eq,
		Step:                    pc.Step,
		Bounds: zone.Bounds{
			MinTemperature: pc.Bounds.MinTemperature,
			MaxTemperature: pc.Bounds.MaxTemperature,
			MaxCO2:         pc.Bounds.MaxCO2,
		},
	}
	if err := p.Validate(); err != nil {
		return zone.Params{}, err
	}
	return p, nil
}

func (c Config) InitialState() (zone.State, error) {
	mode, err := zone.ParseMode(c.Initial.Mode)
	if err != nil {
		return zone.State{}, err
	}
	return zone.State{
		AirTemperature:  c.Initial.AirTemperature,
		WallTemperature: c.Initial.WallTemperature,
		CO2:             c.Initial.CO2,
		Mode:            mode,
		Energy:          c.Initial.Energy,
	}, nil
}

func (c Config) InvalidPolicy() (zone.InvalidPolicy, error) {
	return zone.ParseInvalidPolicy(c.Simulation.OnInvalid)
}
