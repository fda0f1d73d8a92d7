// Package config loads and validates scada runtime configuration.
//
// Configuration files are YAML (.yaml, .yml) or CUE (.cue). Both are checked
// against the embedded CUE schema before being decoded, so range and enum
// errors are reported with the offending path.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

//go:embed schema.cue
var schemaCUE string

// Config is the complete runtime configuration.
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	HTTP       HTTP       `yaml:"http"`
	Journal    Journal    `yaml:"journal"`
	NATS       NATS       `yaml:"nats"`
	Influx     Influx     `yaml:"influx"`
	Advisor    Advisor    `yaml:"advisor"`
}

// Simulation holds the simulator tunables.
type Simulation struct {
	TickPeriod        Duration `yaml:"tick_period"`
	Smoothing         float64  `yaml:"smoothing"`
	ManualTimeout     Duration `yaml:"manual_timeout"`
	ECCSConfirmWindow Duration `yaml:"eccs_confirm_window"`
	AlertCapacity     int      `yaml:"alert_capacity"`
	HistoryCapacity   int      `yaml:"history_capacity"`
	CompoundRounding  bool     `yaml:"compound_rounding"`
	Seed              int64    `yaml:"seed"`
	Initial           Initial  `yaml:"initial"`
}

// Initial overrides fields of the default cold-start state. Nil fields keep
// the default.
type Initial struct {
	Temperature   *float64        `yaml:"reactor_temperature"`
	RodPosition   *float64        `yaml:"control_rod_position"`
	CoolantFlow   *float64        `yaml:"coolant_flow"`
	TurbineSpeed  *float64        `yaml:"turbine_rpm"`
	PowerOutput   *float64        `yaml:"power_output"`
	GridDemand    *float64        `yaml:"grid_demand"`
	PumpA         *bool           `yaml:"coolant_pump_a"`
	PumpB         *bool           `yaml:"coolant_pump_b"`
	GridSync      *plant.GridSync `yaml:"grid_sync_status"`
	ECCSReservoir *float64        `yaml:"eccs_water_level"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Journal configures the SQLite run journal. An empty path disables it.
type Journal struct {
	Path string `yaml:"path"`
}

// NATS configures the alert and sample bus. An empty URL disables it.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Influx configures the trend sink. An empty URL disables it.
type Influx struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Advisor configures the assistant gateway behind the advisor endpoint. An
// empty URL serves prompts with the fallback text only.
type Advisor struct {
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Simulation: Simulation{
			TickPeriod:        Duration(engine.DefaultTickPeriod),
			Smoothing:         plant.DefaultSmoothing,
			ManualTimeout:     Duration(engine.DefaultManualTimeout),
			ECCSConfirmWindow: Duration(engine.DefaultConfirmWindow),
			AlertCapacity:     engine.DefaultAlertCapacity,
			HistoryCapacity:   engine.DefaultHistoryCapacity,
		},
		HTTP:    HTTP{Addr: ":8080"},
		NATS:    NATS{SubjectPrefix: "scada"},
		Influx:  Influx{Bucket: "scada"},
		Advisor: Advisor{Timeout: Duration(30 * time.Second)},
	}
}

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatCUE
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return 0, fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
}

// Load reads, validates and decodes the file at path on top of Default().
func Load(path string) (Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes data on top of Default().
func Parse(data []byte, format Format) (Config, error) {
	ctx := cuecontext.New()

	var v cue.Value
	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		v = ctx.Encode(raw)
	case FormatCUE:
		v = ctx.CompileBytes(data, cue.Filename("config.cue"))
	default:
		return Config{}, fmt.Errorf("unknown config format %d", format)
	}
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("build config: %w", err)
	}

	if err := validateSchema(ctx, v); err != nil {
		return Config{}, err
	}

	// The validated value is re-encoded as JSON, which yaml.v3 reads
	// natively, so both formats share one strict decoder.
	js, err := v.MarshalJSON()
	if err != nil {
		return Config{}, fmt.Errorf("export config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(js))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateSchema(ctx *cue.Context, v cue.Value) error {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError reports a configuration that violates the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.TickPeriod <= 0 {
		errs = append(errs, errors.New("simulation.tick_period must be positive"))
	}
	if s.ManualTimeout <= 0 {
		errs = append(errs, errors.New("simulation.manual_timeout must be positive"))
	}
	if s.ECCSConfirmWindow <= 0 {
		errs = append(errs, errors.New("simulation.eccs_confirm_window must be positive"))
	}
	if c.Advisor.URL != "" && c.Advisor.Timeout <= 0 {
		errs = append(errs, errors.New("advisor.timeout must be positive"))
	}
	if c.Influx.URL != "" && c.Influx.Org == "" {
		errs = append(errs, errors.New("influx.org is required when influx.url is set"))
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Err: errors.Join(errs...)}
}

// InitialState applies the overrides to plant.DefaultState.
func (c Config) InitialState() plant.State {
	s := plant.DefaultState()
	in := c.Simulation.Initial
	setFloat(&s.Temperature, in.Temperature)
	setFloat(&s.RodPosition, in.RodPosition)
	setFloat(&s.CoolantFlow, in.CoolantFlow)
	setFloat(&s.TurbineSpeed, in.TurbineSpeed)
	setFloat(&s.PowerOutput, in.PowerOutput)
	setFloat(&s.GridDemand, in.GridDemand)
	setFloat(&s.ECCSReservoir, in.ECCSReservoir)
	if in.PumpA != nil {
		s.PumpA = *in.PumpA
	}
	if in.PumpB != nil {
		s.PumpB = *in.PumpB
	}
	if in.GridSync != nil {
		s.GridSync = *in.GridSync
	}
	return s.Normalize()
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Engine converts the simulation section to an engine.Config.
func (c Config) Engine() engine.Config {
	s := c.Simulation
	return engine.Config{
		TickPeriod:       time.Duration(s.TickPeriod),
		Smoothing:        s.Smoothing,
		ManualTimeout:    time.Duration(s.ManualTimeout),
		ConfirmWindow:    time.Duration(s.ECCSConfirmWindow),
		AlertCapacity:    s.AlertCapacity,
		HistoryCapacity:  s.HistoryCapacity,
		CompoundRounding: s.CompoundRounding,
		Seed:             s.Seed,
		Initial:          c.InitialState(),
	}
}
